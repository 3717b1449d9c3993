package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/internal/summary"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

type weightRepository interface {
	GetWeights(ctx context.Context, classID, subject string) (*models.AssignmentWeight, error)
	ListWeights(ctx context.Context, classID string) ([]models.AssignmentWeight, error)
	Upsert(ctx context.Context, weight *models.AssignmentWeight) error
}

// WeightService reads and writes per-subject weight tables. Reads go through
// the cache; writes require the weights to total 100.
type WeightService struct {
	repo      weightRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWeightService constructs a WeightService.
func NewWeightService(repo weightRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *WeightService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeightService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// ListWeights returns every weight table of a class ordered by subject.
func (s *WeightService) ListWeights(ctx context.Context, classID string) ([]models.AssignmentWeight, error) {
	weights, _, err := s.List(ctx, classID)
	return weights, err
}

// List returns the weight tables of a class and whether they came from cache.
func (s *WeightService) List(ctx context.Context, classID string) ([]models.AssignmentWeight, bool, error) {
	if strings.TrimSpace(classID) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}

	key := weightsCacheKey(s.cache, classID)
	var cached []models.AssignmentWeight
	if s.cache.Load(ctx, key, &cached) {
		return cached, true, nil
	}

	start := time.Now()
	weights, err := s.repo.ListWeights(ctx, classID)
	s.metrics.ObserveDBQuery("list_weights", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load weights")
	}
	if weights == nil {
		weights = []models.AssignmentWeight{}
	}
	s.cache.Save(ctx, key, weights)
	return weights, false, nil
}

// Get returns the weight table of one subject.
func (s *WeightService) Get(ctx context.Context, classID, subject string) (*models.AssignmentWeight, error) {
	if strings.TrimSpace(classID) == "" || strings.TrimSpace(subject) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId and subject are required")
	}
	weight, err := s.repo.GetWeights(ctx, classID, subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no weights configured for "+subject)
		}
		return nil, appErrors.Internal(err, "failed to load weights")
	}
	return weight, nil
}

// Upsert replaces the weight table of a subject and drops the cached class tables.
func (s *WeightService) Upsert(ctx context.Context, req dto.UpsertWeightsRequest, actorID string) (*models.AssignmentWeight, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid weights payload")
	}
	if err := summary.ValidateWeights(req.Weights, true); err != nil {
		return nil, err
	}

	weight := &models.AssignmentWeight{
		ClassID: req.ClassID,
		Subject: req.Subject,
		Weights: req.Weights,
	}
	if actorID != "" {
		weight.UpdatedBy = &actorID
	}
	if err := s.repo.Upsert(ctx, weight); err != nil {
		return nil, appErrors.Internal(err, "failed to save weights")
	}

	if err := s.cache.Evict(ctx, weightsCacheKey(s.cache, req.ClassID)); err != nil {
		s.logger.Sugar().Warnw("stale weights may be served until expiry", "class_id", req.ClassID, "error", err)
	}
	s.logger.Sugar().Infow("weights updated", "class_id", req.ClassID, "subject", req.Subject, "actor", actorID)
	return weight, nil
}

func weightsCacheKey(cache *CacheService, classID string) string {
	return cache.Key("weights", classID)
}
