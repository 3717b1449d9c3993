package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/internal/repository"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/jobs"
)

// ReportWorker renders queued report jobs. It is the jobs.Handler behind the reports queue.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker. maxRetries must match the queue's MaxRetries.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{repo: repo, exporter: exporter, logger: logger, maxRetries: maxRetries}
}

// Handle processes one queue job. Malformed source records (validation or
// not-found errors) fail the job at once and return nil so the queue drops it.
// Other errors put the job back to QUEUED and are returned for retry until
// the last attempt, which marks it FAILED.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		w.logger.Debug("report job already settled", zap.String("job_id", job.ID), zap.String("status", string(record.Status)))
		return nil
	}
	if err := w.repo.Update(ctx, job.ID, progressed(models.ReportStatusProcessing, 10)); err != nil {
		return err
	}

	result, genErr := w.exporter.Generate(ctx, record)
	switch {
	case genErr == nil:
		if err := w.repo.Update(ctx, job.ID, settled(models.ReportStatusFinished, result.URL, "")); err != nil {
			w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
			return err
		}
		w.logger.Info("report job finished", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	case isPermanent(genErr):
		w.fail(ctx, job, genErr)
		return nil
	case job.Attempt >= w.maxRetries:
		w.fail(ctx, job, genErr)
		return genErr
	}

	retry := progressed(models.ReportStatusQueued, 0)
	msg := genErr.Error()
	retry.ErrorMessage = &msg
	if err := w.repo.Update(ctx, job.ID, retry); err != nil {
		w.logger.Warn("failed to requeue job", zap.String("job_id", job.ID), zap.Error(err))
	}
	return genErr
}

func (w *ReportWorker) fail(ctx context.Context, job jobs.Job, cause error) {
	if err := w.repo.Update(ctx, job.ID, settled(models.ReportStatusFailed, "", cause.Error())); err != nil {
		w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	w.logger.Warn("report job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(cause))
}

func isPermanent(err error) bool {
	return appErrors.Is(err, appErrors.ErrValidation) || appErrors.Is(err, appErrors.ErrNotFound)
}

func progressed(status models.ReportStatus, progress int) repository.UpdateReportJobParams {
	return repository.UpdateReportJobParams{Status: &status, Progress: &progress}
}

// settled closes a job at 100%. An empty url leaves result_url untouched; the
// error message is always written so a retried job that succeeds clears it.
func settled(status models.ReportStatus, url, message string) repository.UpdateReportJobParams {
	params := progressed(status, 100)
	now := time.Now().UTC()
	params.FinishedAt = &now
	params.ErrorMessage = &message
	if url != "" {
		params.ResultURL = &url
	}
	return params
}
