package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/export"
	"github.com/noah-isme/classbook-api/pkg/storage"
)

type reportSource interface {
	Attendance(ctx context.Context, query dto.AttendanceStatisticsQuery) (*dto.AttendanceStatisticsResponse, error)
	Grades(ctx context.Context, query dto.GradeStatisticsQuery) (*dto.GradeStatisticsResponse, error)
	StudentReport(ctx context.Context, query dto.StudentReportQuery) (*dto.StudentReportResponse, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService turns summaries into CSV or PDF documents and persists them
// behind signed download tokens.
type ExportService struct {
	source  reportSource
	storage fileStorage
	csv     documentRenderer
	pdf     documentRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(source reportSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf documentRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		source:  source,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the document described by the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	doc, err := s.BuildDocument(ctx, job.Type, job.Params)
	if err != nil {
		return nil, err
	}
	payload, err := s.Render(doc, job.Params.Format)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Render encodes a document in the requested format.
func (s *ExportService) Render(doc export.Document, format models.ReportFormat) ([]byte, error) {
	switch format {
	case models.ReportFormatCSV:
		return s.csv.RenderDocument(doc)
	case models.ReportFormatPDF:
		return s.pdf.RenderDocument(doc)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
}

// BuildDocument recomputes the summaries for a report type and lays them out.
func (s *ExportService) BuildDocument(ctx context.Context, reportType models.ReportType, params models.ReportJobParams) (export.Document, error) {
	switch reportType {
	case models.ReportTypeStudent:
		if params.StudentID == nil || *params.StudentID == "" {
			return export.Document{}, appErrors.Clone(appErrors.ErrValidation, "student report requires a student id")
		}
		resp, err := s.source.StudentReport(ctx, dto.StudentReportQuery{ClassID: params.ClassID, StudentID: *params.StudentID, Note: params.Note})
		if err != nil {
			return export.Document{}, err
		}
		return StudentReportDocument(resp.Report), nil
	case models.ReportTypeClassAttendance:
		resp, err := s.source.Attendance(ctx, dto.AttendanceStatisticsQuery{ClassID: params.ClassID, Subject: params.Subject, Sort: string(models.AttendanceStatusPresent), Order: "desc"})
		if err != nil {
			return export.Document{}, err
		}
		return AttendanceDocument(resp), nil
	case models.ReportTypeClassGrades:
		resp, err := s.source.Grades(ctx, dto.GradeStatisticsQuery{ClassID: params.ClassID, Subject: params.Subject})
		if err != nil {
			return export.Document{}, err
		}
		return GradesDocument(resp), nil
	default:
		return export.Document{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report type %s", reportType))
	}
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	parts := []string{strings.ToLower(string(job.Type)), sanitizeFilename(job.Params.ClassID)}
	if job.Params.StudentID != nil {
		parts = append(parts, sanitizeFilename(*job.Params.StudentID))
	}
	parts = append(parts, time.Now().UTC().Format("20060102_150405"))
	return fmt.Sprintf("%s.%s", strings.Join(parts, "_"), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

var reportRowHeaders = []string{"Subject", "Homework", "Quiz", "Exam", "Project", "Final Exam", "Final Score",
	"Present", "Absent", "Late", "Sick", "Excused", "Pending"}

// StudentReportDocument lays out a report card: profile, one row per subject,
// average score, grading policy appendix and the teacher's note.
func StudentReportDocument(report *models.StudentReport) export.Document {
	table := export.Dataset{Headers: reportRowHeaders}
	for _, row := range report.Rows {
		table.Rows = append(table.Rows, map[string]string{
			"Subject":     row.Subject,
			"Homework":    formatScore(row.Homework),
			"Quiz":        formatScore(row.Quiz),
			"Exam":        formatScore(row.Exam),
			"Project":     formatScore(row.Project),
			"Final Exam":  formatScore(row.FinalExam),
			"Final Score": formatScore(row.FinalScore),
			"Present":     strconv.Itoa(row.Present),
			"Absent":      strconv.Itoa(row.Absent),
			"Late":        strconv.Itoa(row.Late),
			"Sick":        strconv.Itoa(row.Sick),
			"Excused":     strconv.Itoa(row.Excused),
			"Pending":     strconv.Itoa(row.Pending),
		})
	}

	sections := []export.Section{{Heading: "Subjects", Table: table}}
	if policy := gradingPolicyLines(report.Weights); len(policy) > 0 {
		sections = append(sections, export.Section{Heading: "Grading policy", Lines: policy})
	}
	if report.Note != "" {
		sections = append(sections, export.Section{Heading: "Note", Lines: []string{report.Note}})
	}

	return export.Document{
		Title:     "Student Report",
		Landscape: true,
		Fields: []export.Field{
			{Label: "Student", Value: report.Profile.Name},
			{Label: "Class", Value: report.Profile.ClassName},
			{Label: "Homeroom", Value: report.Profile.Homeroom},
			{Label: "Generated", Value: report.GeneratedAt.UTC().Format(time.RFC3339)},
		},
		Sections: sections,
		Footer:   []export.Field{{Label: "Average score", Value: formatScore(report.AverageScore)}},
	}
}

func gradingPolicyLines(weights []models.AssignmentWeight) []string {
	lines := make([]string, 0, len(weights))
	for _, table := range weights {
		parts := make([]string, 0, len(models.AssignmentTypes))
		for _, assignmentType := range models.AssignmentTypes {
			weight, ok := table.Weights[assignmentType]
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s%%", assignmentType.Label(), strconv.FormatFloat(weight, 'f', -1, 64)))
		}
		lines = append(lines, fmt.Sprintf("%s: %s", table.Subject, strings.Join(parts, ", ")))
	}
	return lines
}

// AttendanceDocument lays out one attendance table per subject. Recorded below
// Journals means the student was left out of some journals.
func AttendanceDocument(resp *dto.AttendanceStatisticsResponse) export.Document {
	headers := []string{"Student"}
	for _, status := range models.AttendanceStatuses {
		headers = append(headers, statusHeader(status))
	}
	headers = append(headers, "Recorded", "Journals", "Rate (%)")

	subjects := make([]string, 0, len(resp.Subjects))
	for subject := range resp.Subjects {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	sections := make([]export.Section, 0, len(subjects))
	for _, subject := range subjects {
		table := export.Dataset{Headers: headers}
		for _, summary := range resp.Subjects[subject] {
			row := map[string]string{
				"Student":  summary.Name,
				"Recorded": strconv.Itoa(summary.Recorded()),
				"Journals": strconv.Itoa(summary.TotalJournals),
				"Rate (%)": formatScore(summary.Rate),
			}
			for _, status := range models.AttendanceStatuses {
				row[statusHeader(status)] = strconv.Itoa(summary.Counts[status])
			}
			table.Rows = append(table.Rows, row)
		}
		sections = append(sections, export.Section{Heading: subject, Table: table})
	}
	if len(sections) == 0 {
		sections = append(sections, export.Section{Lines: []string{"No journals recorded."}})
	}

	return export.Document{
		Title:     "Class Attendance",
		Landscape: true,
		Fields:    []export.Field{{Label: "Class", Value: resp.ClassID}},
		Sections:  sections,
	}
}

// GradesDocument lays out final scores with the per-type means that produced them.
func GradesDocument(resp *dto.GradeStatisticsResponse) export.Document {
	headers := []string{"Subject", "Student"}
	for _, assignmentType := range models.AssignmentTypes {
		headers = append(headers, assignmentType.Label())
	}
	headers = append(headers, "Final Score")

	table := export.Dataset{Headers: headers}
	for _, final := range resp.FinalScores {
		row := map[string]string{
			"Subject":     final.Subject,
			"Student":     final.Name,
			"Final Score": formatScore(final.Score),
		}
		for _, item := range final.Breakdown {
			if item.Mean != nil {
				row[item.Type.Label()] = formatScore(*item.Mean)
			}
		}
		table.Rows = append(table.Rows, row)
	}

	sections := []export.Section{{Heading: "Final scores", Table: table}}
	if len(resp.Diagnostics) > 0 {
		lines := make([]string, 0, len(resp.Diagnostics))
		for _, diagnostic := range resp.Diagnostics {
			lines = append(lines, diagnostic.Message)
		}
		sections = append(sections, export.Section{Heading: "Warnings", Lines: lines})
	}

	return export.Document{
		Title:     "Class Grades",
		Landscape: true,
		Fields: []export.Field{
			{Label: "Class", Value: resp.ClassID},
			{Label: "Score policy", Value: resp.Policy},
		},
		Sections: sections,
	}
}

func statusHeader(status models.AttendanceStatus) string {
	raw := string(status)
	return strings.ToUpper(raw[:1]) + raw[1:]
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
