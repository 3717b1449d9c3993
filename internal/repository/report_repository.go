package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbook-api/internal/models"
)

const (
	defaultJobListLimit  = 20
	maxJobListLimit      = 100
	defaultCleanupBatch  = 50
	selectReportJobQuery = `SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message FROM report_jobs`
)

// ReportRepository stores report job rows. Generated files live in storage;
// only their signed URL is kept here.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts job, filling in its ID, status and creation time when unset.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO report_jobs
(id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`, job)
	if err != nil {
		return fmt.Errorf("insert report job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID loads one job. sql.ErrNoRows is wrapped, not translated.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, selectReportJobQuery+` WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("load report job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateReportJobParams lists the columns a worker may change. Nil fields are left alone.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (p UpdateReportJobParams) assignments() ([]string, []interface{}) {
	var (
		columns []string
		args    []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		columns = append(columns, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Progress != nil {
		set("progress", *p.Progress)
	}
	if p.ResultURL != nil {
		set("result_url", *p.ResultURL)
	}
	if p.ErrorMessage != nil {
		set("error_message", *p.ErrorMessage)
	}
	if p.FinishedAt != nil {
		set("finished_at", *p.FinishedAt)
	}
	return columns, args
}

// Update applies the non-nil fields of params. An empty change set issues no query.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	columns, args := params.assignments()
	if len(columns) == 0 {
		return nil
	}
	args = append(args, id)
	query := "UPDATE report_jobs SET " + strings.Join(columns, ", ") + fmt.Sprintf(" WHERE id = $%d", len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report job %s: %w", id, err)
	}
	return nil
}

// ListByClass returns a class's jobs, newest first. Limits outside 1..100 fall back to 20.
func (r *ReportRepository) ListByClass(ctx context.Context, classID string, limit int) ([]models.ReportJob, error) {
	if limit <= 0 || limit > maxJobListLimit {
		limit = defaultJobListLimit
	}
	return r.selectJobs(ctx, "list class jobs",
		` WHERE params->>'classId' = $1 ORDER BY created_at DESC LIMIT $2`, classID, limit)
}

// ListQueued returns the oldest jobs still waiting for a worker.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	return r.selectJobs(ctx, "list queued jobs",
		` WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, models.ReportStatusQueued, limit)
}

// ListFinishedBefore returns finished jobs whose files are older than cutoff.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = defaultCleanupBatch
	}
	return r.selectJobs(ctx, "list expired jobs",
		` WHERE status = $1 AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3`, models.ReportStatusFinished, cutoff, limit)
}

func (r *ReportRepository) selectJobs(ctx context.Context, op, where string, args ...interface{}) ([]models.ReportJob, error) {
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, selectReportJobQuery+where, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}
