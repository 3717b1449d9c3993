package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbook-api/internal/models"
)

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"})
}

func TestReportRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WithArgs(sqlmock.AnyArg(), "student", sqlmock.AnyArg(), "QUEUED", 0, nil, "teacher-9", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := "stu-4"
	job := &models.ReportJob{
		Type:      models.ReportTypeStudent,
		Params:    models.ReportJobParams{ClassID: "7A", StudentID: &student, Format: models.ReportFormatPDF},
		CreatedBy: "teacher-9",
	}
	require.NoError(t, NewReportRepository(db).Create(context.Background(), job))

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByIDDecodesParams(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectReportJobQuery + " WHERE id = $1")).
		WithArgs("job-3").
		WillReturnRows(jobRows().AddRow("job-3", "student", `{"classId":"7A","studentId":"stu-4","format":"pdf","note":"Term 1"}`, "QUEUED", 0, nil, "teacher-9", time.Now(), nil, nil))

	job, err := NewReportRepository(db).GetByID(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Equal(t, "7A", job.Params.ClassID)
	require.NotNil(t, job.Params.StudentID)
	assert.Equal(t, "stu-4", *job.Params.StudentID)
	assert.Equal(t, models.ReportFormatPDF, job.Params.Format)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectReportJobQuery)).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := NewReportRepository(db).GetByID(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReportRepositoryUpdateBuildsSetClause(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	failed := models.ReportStatusFailed
	message := "render failed"
	finished := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, error_message = $2, finished_at = $3 WHERE id = $4")).
		WithArgs(failed, message, finished, "job-5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewReportRepository(db).Update(context.Background(), "job-5", UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &message,
		FinishedAt:   &finished,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateNoop(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	require.NoError(t, NewReportRepository(db).Update(context.Background(), "job-5", UpdateReportJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListLimits(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewReportRepository(db)
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE params->>'classId' = $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("7A", defaultJobListLimit).
		WillReturnRows(jobRows().AddRow("job-2", "class_grades", `{"classId":"7A","format":"csv"}`, "FINISHED", 100, "/api/v1/export/t", "teacher-9", time.Now(), time.Now(), nil))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 ORDER BY created_at ASC LIMIT $2")).
		WithArgs(models.ReportStatusQueued, defaultJobListLimit).
		WillReturnRows(jobRows())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3")).
		WithArgs(models.ReportStatusFinished, cutoff, defaultCleanupBatch).
		WillReturnRows(jobRows())

	byClass, err := repo.ListByClass(context.Background(), "7A", 500)
	require.NoError(t, err)
	require.Len(t, byClass, 1)
	assert.Equal(t, models.ReportTypeClassGrades, byClass[0].Type)

	queued, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, queued)

	expired, err := repo.ListFinishedBefore(context.Background(), cutoff, -1)
	require.NoError(t, err)
	assert.Empty(t, expired)
	require.NoError(t, mock.ExpectationsWereMet())
}
