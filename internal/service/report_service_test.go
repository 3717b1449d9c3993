package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/internal/repository"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get report job: %w", sql.ErrNoRows)
	}
	return job, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListByClass(ctx context.Context, classID string, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range r.jobs {
		if job.Params.ClassID == classID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

var (
	adminClaims   = &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	teacherClaims = &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	studentClaims = &models.JWTClaims{UserID: "user-alice", Role: models.RoleStudent, StudentID: "s-alice"}
)

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t, &reportSourceStub{})
	access := NewAccessService(instructorStub{instructors: map[string]string{"class-1": "teacher-1"}}, nil)
	service := NewReportService(repo, access, queue, exportSvc, nil, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return service, repo, queue, exportSvc
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeClassGrades,
		ClassID: "class-1",
		Format:  models.ReportFormatCSV,
	}, teacherClaims)
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, string(models.ReportTypeClassGrades), queue.jobs[0].Type)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Contains(t, repo.jobs, resp.ID)
	assert.Equal(t, "teacher-1", repo.jobs[resp.ID].CreatedBy)
	assert.Equal(t, "class-1", repo.jobs[resp.ID].Params.ClassID)
}

func TestReportServiceCreateJobAuthorization(t *testing.T) {
	svc, _, queue, _ := newReportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, dto.ReportRequest{
		Type:    models.ReportTypeClassAttendance,
		ClassID: "class-9",
		Format:  models.ReportFormatPDF,
	}, teacherClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	other := "s-bob"
	_, err = svc.CreateJob(ctx, dto.ReportRequest{
		Type:      models.ReportTypeStudent,
		ClassID:   "class-1",
		StudentID: &other,
		Format:    models.ReportFormatPDF,
	}, studentClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	own := "s-alice"
	_, err = svc.CreateJob(ctx, dto.ReportRequest{
		Type:      models.ReportTypeStudent,
		ClassID:   "class-1",
		StudentID: &own,
		Format:    models.ReportFormatPDF,
	}, studentClaims)
	require.NoError(t, err)
	assert.Len(t, queue.jobs, 1)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeStudent, ClassID: "class-1", Format: models.ReportFormatPDF}, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeStudent, ClassID: "class-1", Format: models.ReportFormatPDF}, adminClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: "behavior", ClassID: "class-1", Format: models.ReportFormatPDF}, adminClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeClassGrades, ClassID: "class-1", Format: "xlsx"}, adminClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	queue.err = errors.New("queue full")

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeClassGrades,
		ClassID: "class-1",
		Format:  models.ReportFormatCSV,
	}, adminClaims)
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		assert.Equal(t, 100, job.Progress)
	}
}

func TestReportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeClassAttendance,
		Params:    models.ReportJobParams{ClassID: "class-1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "teacher-1",
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, job.Type, resp.Type)

	_, err = svc.GetStatus(context.Background(), job.ID, teacherClaims)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), job.ID, studentClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.GetStatus(context.Background(), "missing", adminClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceListForClass(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeClassGrades, Params: models.ReportJobParams{ClassID: "class-1"}}
	repo.jobs["job-2"] = &models.ReportJob{ID: "job-2", Type: models.ReportTypeClassGrades, Params: models.ReportJobParams{ClassID: "class-2"}}

	list, err := svc.ListForClass(context.Background(), "class-1", 10, teacherClaims)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "job-1", list[0].ID)

	_, err = svc.ListForClass(context.Background(), "class-2", 10, teacherClaims)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-download",
		Type:      models.ReportTypeClassAttendance,
		Params:    models.ReportJobParams{ClassID: "class-1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "admin",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	download.File.Close()

	_, err = svc.ResolveDownload(context.Background(), "garbage")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	repo.jobs["job-q"] = &models.ReportJob{ID: "job-q", Type: models.ReportTypeClassGrades, Status: models.ReportStatusQueued}
	repo.jobs["job-f"] = &models.ReportJob{ID: "job-f", Type: models.ReportTypeClassGrades, Status: models.ReportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "job-q", queue.jobs[0].ID)
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func queuedJobRepo() *reportRepoStub {
	return &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeClassGrades,
				Params:    models.ReportJobParams{ClassID: "class-1", Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: "admin",
			},
		},
	}
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := queuedJobRepo()
	exporter := exportStub{result: &ExportResult{URL: "/api/v1/export/token"}}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	require.Equal(t, 100, repo.jobs["job-1"].Progress)
	require.NotNil(t, repo.jobs["job-1"].ResultURL)
	assert.Equal(t, "/api/v1/export/token", *repo.jobs["job-1"].ResultURL)
}

func TestReportWorkerHandleRequeuesBeforeLastAttempt(t *testing.T) {
	repo := queuedJobRepo()
	worker := NewReportWorker(repo, exportStub{err: errors.New("disk full")}, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, repo.jobs["job-1"].Status)
	require.NotNil(t, repo.jobs["job-1"].ErrorMessage)
	assert.Equal(t, "disk full", *repo.jobs["job-1"].ErrorMessage)
}

func TestReportWorkerHandleFailureRetries(t *testing.T) {
	repo := queuedJobRepo()
	worker := NewReportWorker(repo, exportStub{err: errors.New("boom")}, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}

func TestReportWorkerHandleMalformedSourceFailsImmediately(t *testing.T) {
	repo := queuedJobRepo()
	cause := appErrors.Clone(appErrors.ErrValidation, "assignment hw-1 has duplicate grade for s-alice")
	worker := NewReportWorker(repo, exportStub{err: cause}, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}

func TestReportWorkerSkipsSettledJobs(t *testing.T) {
	repo := queuedJobRepo()
	repo.jobs["job-1"].Status = models.ReportStatusFinished
	worker := NewReportWorker(repo, exportStub{err: errors.New("must not render")}, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	assert.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	assert.Nil(t, repo.jobs["job-1"].ErrorMessage)
}
