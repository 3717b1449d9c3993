package models

import "time"

// SystemMetrics is a point-in-time view of the process counters.
type SystemMetrics struct {
	CacheHitRatio              float64   `json:"cache_hit_ratio"`
	CacheHits                  uint64    `json:"cache_hits"`
	CacheMisses                uint64    `json:"cache_misses"`
	RequestsTotal              uint64    `json:"requests_total"`
	AverageRequestDurationMs   float64   `json:"average_request_duration_ms"`
	DBQueryCount               uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs   float64   `json:"average_db_query_duration_ms"`
	AggregationCount           uint64    `json:"aggregation_count"`
	AverageAggregationDuration float64   `json:"average_aggregation_duration_ms"`
	ValidationFailures         uint64    `json:"validation_failures"`
	Diagnostics                uint64    `json:"diagnostics"`
	Goroutines                 int       `json:"goroutines"`
	GeneratedAt                time.Time `json:"generated_at"`
}
