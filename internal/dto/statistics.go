package dto

import (
	"time"

	"github.com/noah-isme/classbook-api/internal/models"
)

// AttendanceStatisticsQuery scopes GET /classes/:classId/statistics/attendance.
type AttendanceStatisticsQuery struct {
	ClassID  string     `json:"classId" validate:"required"`
	Subject  string     `json:"subject,omitempty"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
	Sort     string     `json:"sort,omitempty"`
	Order    string     `json:"order,omitempty"`
}

// GradeStatisticsQuery scopes GET /classes/:classId/statistics/grades.
type GradeStatisticsQuery struct {
	ClassID string                `json:"classId" validate:"required"`
	Subject string                `json:"subject,omitempty"`
	Type    models.AssignmentType `json:"type,omitempty"`
	Sort    string                `json:"sort,omitempty"`
	Order   string                `json:"order,omitempty"`
}

// StudentReportQuery scopes GET /classes/:classId/students/:studentId/report.
type StudentReportQuery struct {
	ClassID   string `json:"classId" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
	Note      string `json:"note,omitempty" validate:"max=500"`
}

// SortMeta echoes the active sort column back to clients.
type SortMeta struct {
	Key       string `json:"key"`
	Direction string `json:"direction"`
}

// AttendanceStatisticsResponse is the attendance table payload.
type AttendanceStatisticsResponse struct {
	ClassID     string                                `json:"classId"`
	Sort        *SortMeta                             `json:"sort,omitempty"`
	Subjects    map[string][]models.AttendanceSummary `json:"subjects"`
	Diagnostics []models.Diagnostic                   `json:"diagnostics"`
}

// GradeStatisticsResponse is the grade table payload.
type GradeStatisticsResponse struct {
	ClassID     string              `json:"classId"`
	Policy      string              `json:"policy"`
	Sort        *SortMeta           `json:"sort,omitempty"`
	Tables      []models.GradeTable `json:"tables"`
	FinalScores []models.FinalScore `json:"finalScores"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// StudentReportResponse wraps a student's report card with aggregation diagnostics.
type StudentReportResponse struct {
	Report      *models.StudentReport `json:"report"`
	Diagnostics []models.Diagnostic   `json:"diagnostics"`
}
