package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/response"
)

const dateLayout = "2006-01-02"

type statisticsService interface {
	Attendance(ctx context.Context, query dto.AttendanceStatisticsQuery) (*dto.AttendanceStatisticsResponse, error)
	Grades(ctx context.Context, query dto.GradeStatisticsQuery) (*dto.GradeStatisticsResponse, error)
	StudentReport(ctx context.Context, query dto.StudentReportQuery) (*dto.StudentReportResponse, error)
}

// StatisticsHandler serves the attendance and grade summary tables.
type StatisticsHandler struct {
	service statisticsService
}

// NewStatisticsHandler constructs the handler.
func NewStatisticsHandler(service statisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: service}
}

// Attendance godoc
// @Summary Attendance summary per subject
// @Tags Statistics
// @Produce json
// @Param classId path string true "Class ID"
// @Param subject query string false "Subject filter"
// @Param dateFrom query string false "Inclusive start date (YYYY-MM-DD)"
// @Param dateTo query string false "Inclusive end date (YYYY-MM-DD)"
// @Param sort query string false "name or an attendance status"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{classId}/statistics/attendance [get]
func (h *StatisticsHandler) Attendance(c *gin.Context) {
	query := dto.AttendanceStatisticsQuery{
		ClassID: c.Param("classId"),
		Subject: strings.TrimSpace(c.Query("subject")),
		Sort:    strings.TrimSpace(c.Query("sort")),
		Order:   strings.TrimSpace(c.Query("order")),
	}
	var err error
	if query.DateFrom, err = parseDateQuery(c, "dateFrom"); err != nil {
		response.Error(c, err)
		return
	}
	if query.DateTo, err = parseDateQuery(c, "dateTo"); err != nil {
		response.Error(c, err)
		return
	}
	if query.DateTo != nil {
		// the upper bound covers the whole day
		end := query.DateTo.Add(24*time.Hour - time.Nanosecond)
		query.DateTo = &end
	}

	result, err := h.service.Attendance(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, diagnosticsMeta(result.Diagnostics))
}

// Grades godoc
// @Summary Grade tables and weighted final scores
// @Tags Statistics
// @Produce json
// @Param classId path string true "Class ID"
// @Param subject query string false "Subject filter"
// @Param type query string false "Assignment type filter"
// @Param sort query string false "name, finalScore or type:sequence"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{classId}/statistics/grades [get]
func (h *StatisticsHandler) Grades(c *gin.Context) {
	query := dto.GradeStatisticsQuery{
		ClassID: c.Param("classId"),
		Subject: strings.TrimSpace(c.Query("subject")),
		Type:    models.AssignmentType(strings.TrimSpace(c.Query("type"))),
		Sort:    strings.TrimSpace(c.Query("sort")),
		Order:   strings.TrimSpace(c.Query("order")),
	}
	result, err := h.service.Grades(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, diagnosticsMeta(result.Diagnostics))
}

// StudentReport godoc
// @Summary Student report card rows
// @Tags Statistics
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Param note query string false "Teacher note copied to every row"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{classId}/students/{studentId}/report [get]
func (h *StatisticsHandler) StudentReport(c *gin.Context) {
	result, err := h.service.StudentReport(c.Request.Context(), dto.StudentReportQuery{
		ClassID:   c.Param("classId"),
		StudentID: c.Param("studentId"),
		Note:      strings.TrimSpace(c.Query("note")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, diagnosticsMeta(result.Diagnostics))
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid "+name+", expected YYYY-MM-DD")
	}
	return &parsed, nil
}

func diagnosticsMeta(diagnostics []models.Diagnostic) map[string]interface{} {
	return map[string]interface{}{"diagnostics": len(diagnostics)}
}
