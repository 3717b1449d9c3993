package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/internal/repository"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/jobs"
)

type reportAccess interface {
	CanViewClass(ctx context.Context, claims *models.JWTClaims, classID string) error
	CanViewStudent(ctx context.Context, claims *models.JWTClaims, classID, studentID string) error
}

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListByClass(ctx context.Context, classID string, limit int) ([]models.ReportJob, error)
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportService accepts report requests and tracks their jobs. Rendering happens in ReportWorker.
type ReportService struct {
	repo      reportJobStore
	access    reportAccess
	queue     jobDispatcher
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportServiceConfig sets how long finished files are kept and how often they are swept.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ReportDownload is an opened report file ready to stream. The caller closes File.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the service. ResultTTL defaults to 24h.
func NewReportService(repo reportJobStore, access reportAccess, queue jobDispatcher, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		repo:      repo,
		access:    access,
		queue:     queue,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob checks access, stores a QUEUED job and hands it to the queue.
// If the queue refuses it, the job is marked FAILED.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, claims *models.JWTClaims) (*dto.ReportJobResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validateRequest(ctx, req, claims); err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			ClassID:   req.ClassID,
			StudentID: req.StudentID,
			Subject:   req.Subject,
			Format:    req.Format,
			Note:      req.Note,
		},
		Status:    models.ReportStatusQueued,
		Progress:  0,
		CreatedBy: claims.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Internal(err, "failed to create report job")
	}
	if err := s.queue.Enqueue(queueJob(job)); err != nil {
		if updateErr := s.repo.Update(ctx, job.ID, settled(models.ReportStatusFailed, "", "queue rejected job")); updateErr != nil {
			s.logger.Warn("failed to mark unqueued job", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Internal(err, "failed to enqueue report job")
	}
	s.logger.Info("report job queued", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.String("class_id", req.ClassID), zap.String("actor", claims.UserID))
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients. Only admins may read jobs they did not create.
func (s *ReportService) GetStatus(ctx context.Context, id string, claims *models.JWTClaims) (*dto.ReportStatusResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin(claims.Role) && job.CreatedBy != claims.UserID {
		return nil, appErrors.ErrForbidden
	}
	return statusResponse(job), nil
}

// ListForClass returns the most recent jobs of a class visible to the caller.
func (s *ReportService) ListForClass(ctx context.Context, classID string, limit int, claims *models.JWTClaims) ([]dto.ReportStatusResponse, error) {
	if err := s.access.CanViewClass(ctx, claims, classID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByClass(ctx, classID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list report jobs")
	}
	out := make([]dto.ReportStatusResponse, 0, len(records))
	for i := range records {
		out = append(out, *statusResponse(&records[i]))
	}
	return out, nil
}

// ResolveDownload checks a download token against its job and opens the file.
// Tokens are only honoured for FINISHED jobs whose stored URL ends with the token.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, name, expires, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Status != models.ReportStatusFinished:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report is not finished")
	case job.ResultURL == nil || tokenFromURL(*job.ResultURL) != token:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link was superseded")
	}
	file, err := s.exporter.Open(name)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open report file")
	}
	return &ReportDownload{File: file, Filename: filepath.Base(name), Format: job.Params.Format, ExpiresAt: expires}, nil
}

// RecoverPendingJobs puts QUEUED jobs back on the in-memory queue after a restart.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	const recoverBatch = 50
	queued, err := s.repo.ListQueued(ctx, recoverBatch)
	if err != nil {
		s.logger.Warn("listing queued report jobs failed", zap.Error(err))
		return
	}
	requeued := 0
	for i := range queued {
		if err := s.queue.Enqueue(queueJob(&queued[i])); err != nil {
			s.logger.Warn("report job not requeued", zap.String("job_id", queued[i].ID), zap.Error(err))
			continue
		}
		requeued++
	}
	if requeued > 0 {
		s.logger.Info("report jobs requeued", zap.Int("count", requeued))
	}
}

// StartCleanup removes expired report files every CleanupInterval until ctx ends.
// A non-positive interval disables it.
func (s *ReportService) StartCleanup(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		return
	}
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				s.cleanupExpired(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// cleanupExpired deletes the files of jobs finished more than ResultTTL ago, then
// sweeps storage for anything older that no job points at.
func (s *ReportService) cleanupExpired(ctx context.Context) {
	const sweepBatch = 100
	expired, err := s.repo.ListFinishedBefore(ctx, time.Now().Add(-s.cfg.ResultTTL), sweepBatch)
	if err != nil {
		s.logger.Warn("listing expired report jobs failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.ResultURL == nil {
			continue
		}
		_, name, _, err := s.exporter.ParseToken(tokenFromURL(*job.ResultURL), true)
		if err != nil {
			continue
		}
		if err := s.exporter.Delete(name); err != nil {
			s.logger.Warn("expired report file not deleted", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	swept, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("report storage sweep failed", zap.Error(err))
		return
	}
	if len(swept) > 0 {
		s.logger.Info("report storage swept", zap.Int("files", len(swept)))
	}
}

func (s *ReportService) validateRequest(ctx context.Context, req dto.ReportRequest, claims *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid report request")
	}
	if req.Type.RequiresStudent() {
		if req.StudentID == nil || strings.TrimSpace(*req.StudentID) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "studentId is required for student reports")
		}
		return s.access.CanViewStudent(ctx, claims, req.ClassID, *req.StudentID)
	}
	return s.access.CanViewClass(ctx, claims, req.ClassID)
}

func (s *ReportService) loadJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load report job")
	}
	return job, nil
}

func queueJob(job *models.ReportJob) jobs.Job {
	return jobs.Job{ID: job.ID, Type: string(job.Type)}
}

func statusResponse(job *models.ReportJob) *dto.ReportStatusResponse {
	resp := &dto.ReportStatusResponse{
		ID:         job.ID,
		Type:       job.Type,
		ClassID:    job.Params.ClassID,
		StudentID:  job.Params.StudentID,
		Format:     job.Params.Format,
		Status:     job.Status,
		Progress:   job.Progress,
		ResultURL:  job.ResultURL,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

func isAdmin(role models.UserRole) bool {
	return role == models.RoleAdmin || role == models.RoleSuperAdmin
}

// tokenFromURL returns the last path segment of a signed download URL.
func tokenFromURL(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}
