package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

// cacheKeyPrefix is bumped whenever a cached payload changes shape.
const cacheKeyPrefix = "classbook:v1"

type payloadStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService is a read-through JSON cache. Failures are logged and counted;
// callers fall back to the database instead of failing the request.
type CacheService struct {
	store   payloadStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service. A disabled service misses on every read.
func NewCacheService(store payloadStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled && store != nil}
}

// Key builds a namespaced cache key.
func (s *CacheService) Key(parts ...string) string {
	return cacheKeyPrefix + ":" + strings.Join(parts, ":")
}

// Load decodes the cached value into dest and reports whether it was found.
func (s *CacheService) Load(ctx context.Context, key string, dest interface{}) bool {
	if s == nil || !s.enabled {
		return false
	}
	start := time.Now()
	raw, err := s.store.Fetch(ctx, key)
	if err != nil {
		s.metrics.RecordCacheOperation(false, time.Since(start))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.metrics.RecordCacheOperation(false, time.Since(start))
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = s.store.Delete(ctx, key)
		return false
	}
	s.metrics.RecordCacheOperation(true, time.Since(start))
	return true
}

// Save encodes value under key using the configured expiry.
func (s *CacheService) Save(ctx context.Context, key string, value interface{}) {
	if s == nil || !s.enabled {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	start := time.Now()
	err = s.store.Store(ctx, key, payload, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Evict removes keys so the next read goes to the database.
func (s *CacheService) Evict(ctx context.Context, keys ...string) error {
	if s == nil || !s.enabled {
		return nil
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache evict failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}
