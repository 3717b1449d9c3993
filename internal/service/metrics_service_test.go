package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/pkg/jobs"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.ObserveAggregation("attendance", 4*time.Millisecond)
	metrics.ObserveAggregation("grades", 2*time.Millisecond)
	metrics.RecordDiagnostics("grades", []models.Diagnostic{
		{Code: models.DiagnosticNotFound},
		{Code: models.DiagnosticConfiguration},
	})
	metrics.RecordValidationFailure("attendance")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 1e-9)
	assert.Equal(t, uint64(2), snapshot.AggregationCount)
	assert.InDelta(t, 3.0, snapshot.AverageAggregationDuration, 1e-9)
	assert.Equal(t, uint64(2), snapshot.Diagnostics)
	assert.Equal(t, uint64(1), snapshot.ValidationFailures)
}

func TestMetricsServiceExposition(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveReportJob(jobs.Job{Type: string(models.ReportTypeStudent)}, nil, time.Second)
	metrics.ObserveReportJob(jobs.Job{Type: string(models.ReportTypeStudent)}, errors.New("boom"), time.Second)
	metrics.RecordDiagnostics("attendance", []models.Diagnostic{{Code: models.DiagnosticNotFound}})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `report_jobs_total{outcome="success",type="student"} 1`)
	assert.Contains(t, body, `report_jobs_total{outcome="error",type="student"} 1`)
	assert.Contains(t, body, `summary_diagnostics_total{code="NOT_FOUND",kind="attendance"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveAggregation("grades", time.Millisecond)
	metrics.ObserveReportJob(jobs.Job{}, nil, time.Millisecond)
	assert.Equal(t, models.SystemMetrics{}, metrics.Snapshot())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
