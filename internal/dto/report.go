package dto

import (
	"time"

	"github.com/noah-isme/classbook-api/internal/models"
)

// ReportRequest is the body of POST /reports/generate. StudentID is required for student reports.
type ReportRequest struct {
	Type      models.ReportType   `json:"type" validate:"required,oneof=student class_attendance class_grades"`
	ClassID   string              `json:"classId" validate:"required"`
	StudentID *string             `json:"studentId,omitempty"`
	Subject   string              `json:"subject,omitempty"`
	Format    models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Note      string              `json:"note,omitempty" validate:"max=500"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse describes a job. ResultURL is set once the job is FINISHED;
// Error carries the last failure, including one that is being retried.
type ReportStatusResponse struct {
	ID         string              `json:"id"`
	Type       models.ReportType   `json:"type"`
	ClassID    string              `json:"classId"`
	StudentID  *string             `json:"studentId,omitempty"`
	Format     models.ReportFormat `json:"format"`
	Status     models.ReportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	Error      *string             `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
}
