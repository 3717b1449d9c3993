package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/internal/summary"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

type journalLister interface {
	ListJournals(ctx context.Context, classID string, filter models.JournalFilter) ([]models.JournalRecord, error)
}

type assignmentLister interface {
	ListAssignments(ctx context.Context, classID string, filter models.AssignmentFilter) ([]models.AssignmentRecord, error)
}

type rosterReader interface {
	GetRoster(ctx context.Context, classID string) ([]models.StudentProfile, error)
	FindProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
}

type weightLister interface {
	ListWeights(ctx context.Context, classID string) ([]models.AssignmentWeight, error)
}

const (
	aggregationAttendance = "attendance"
	aggregationGrades     = "grades"
)

// StatisticsConfig tunes aggregation behaviour.
type StatisticsConfig struct {
	ScorePolicy string
	SortLocale  string
}

// StatisticsService fetches class records and folds them into attendance and
// grade summaries.
type StatisticsService struct {
	journals    journalLister
	assignments assignmentLister
	roster      rosterReader
	weights     weightLister
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	policy      summary.ScorePolicy
	sorter      *summary.Sorter
	now         func() time.Time
}

// NewStatisticsService wires the record sources used for aggregation.
func NewStatisticsService(journals journalLister, assignments assignmentLister, roster rosterReader, weights weightLister, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg StatisticsConfig) *StatisticsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := summary.ScorePolicy(cfg.ScorePolicy)
	if policy != summary.PolicyRenormalize {
		policy = summary.PolicyMissingAsZero
	}
	return &StatisticsService{
		journals:    journals,
		assignments: assignments,
		roster:      roster,
		weights:     weights,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		policy:      policy,
		sorter:      summary.NewSorter(cfg.SortLocale),
		now:         time.Now,
	}
}

// Attendance returns per-subject attendance counts for every roster student.
func (s *StatisticsService) Attendance(ctx context.Context, query dto.AttendanceStatisticsQuery) (*dto.AttendanceStatisticsResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation(err, "invalid attendance query")
	}
	if query.DateFrom != nil && query.DateTo != nil && query.DateTo.Before(*query.DateFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dateTo must not be before dateFrom")
	}
	state, err := parseSortState(query.Sort, query.Order)
	if err != nil {
		return nil, err
	}

	roster, err := s.loadRoster(ctx, query.ClassID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	journals, err := s.journals.ListJournals(ctx, query.ClassID, models.JournalFilter{
		Subject:  query.Subject,
		DateFrom: query.DateFrom,
		DateTo:   query.DateTo,
	})
	s.metrics.ObserveDBQuery("list_journals", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load journals")
	}

	input := summary.AttendanceInput{Journals: journals, Roster: roster}
	if query.Subject != "" {
		input.Subjects = []string{query.Subject}
	}
	report, err := s.summarizeAttendance(query.ClassID, input)
	if err != nil {
		return nil, err
	}

	for _, rows := range report.Subjects {
		state.Apply(summary.AttendanceRows(rows), s.sorter)
	}

	return &dto.AttendanceStatisticsResponse{
		ClassID:     query.ClassID,
		Sort:        sortMeta(state),
		Subjects:    report.Subjects,
		Diagnostics: report.Diagnostics,
	}, nil
}

// Grades returns the positional grade tables and weighted final scores.
func (s *StatisticsService) Grades(ctx context.Context, query dto.GradeStatisticsQuery) (*dto.GradeStatisticsResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation(err, "invalid grade query")
	}
	if query.Type != "" && !query.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown assignment type "+string(query.Type))
	}
	state, err := parseSortState(query.Sort, query.Order)
	if err != nil {
		return nil, err
	}

	roster, err := s.loadRoster(ctx, query.ClassID)
	if err != nil {
		return nil, err
	}
	// Final scores span every weighted type, so only the subject narrows the fetch.
	assignments, weights, err := s.loadGradeSources(ctx, query.ClassID, models.AssignmentFilter{Subject: query.Subject})
	if err != nil {
		return nil, err
	}

	report, err := s.summarizeGrades(query.ClassID, summary.GradeInput{
		Assignments: assignments,
		Roster:      roster,
		Weights:     weights,
		Policy:      s.policy,
	})
	if err != nil {
		return nil, err
	}

	report.Tables = tablesOfType(report.Tables, query.Type)
	finals := finalsBySubject(report.FinalScores)
	for i := range report.Tables {
		table := &report.Tables[i]
		state.Apply(summary.GradeRows{Type: table.Type, Rows: table.Rows, Finals: finals[table.Subject]}, s.sorter)
	}
	sortFinalScores(report.FinalScores, state, s.sorter)

	return &dto.GradeStatisticsResponse{
		ClassID:     query.ClassID,
		Policy:      string(s.policy),
		Sort:        sortMeta(state),
		Tables:      report.Tables,
		FinalScores: report.FinalScores,
		Diagnostics: report.Diagnostics,
	}, nil
}

// StudentReport builds the report card of one student across every subject of the class.
func (s *StatisticsService) StudentReport(ctx context.Context, query dto.StudentReportQuery) (*dto.StudentReportResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation(err, "invalid report query")
	}

	profile, err := s.roster.FindProfile(ctx, query.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if profile.ClassID != query.ClassID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in class")
	}

	roster, err := s.loadRoster(ctx, query.ClassID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	journals, err := s.journals.ListJournals(ctx, query.ClassID, models.JournalFilter{})
	s.metrics.ObserveDBQuery("list_journals", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load journals")
	}
	assignments, weights, err := s.loadGradeSources(ctx, query.ClassID, models.AssignmentFilter{})
	if err != nil {
		return nil, err
	}

	attendance, err := s.summarizeAttendance(query.ClassID, summary.AttendanceInput{Journals: journals, Roster: roster})
	if err != nil {
		return nil, err
	}
	grades, err := s.summarizeGrades(query.ClassID, summary.GradeInput{
		Assignments: assignments,
		Roster:      roster,
		Weights:     weights,
		Policy:      s.policy,
	})
	if err != nil {
		return nil, err
	}

	report := summary.BuildStudentReport(*profile, attendance, grades, weights, query.Note, s.now().UTC())
	diagnostics := append(append([]models.Diagnostic{}, attendance.Diagnostics...), grades.Diagnostics...)
	return &dto.StudentReportResponse{Report: report, Diagnostics: diagnostics}, nil
}

func (s *StatisticsService) loadRoster(ctx context.Context, classID string) ([]models.StudentProfile, error) {
	start := time.Now()
	roster, err := s.roster.GetRoster(ctx, classID)
	s.metrics.ObserveDBQuery("get_roster", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load class roster")
	}
	return roster, nil
}

// tablesOfType keeps the tables of one assignment type; an empty type keeps all.
func tablesOfType(tables []models.GradeTable, assignmentType models.AssignmentType) []models.GradeTable {
	if assignmentType == "" {
		return tables
	}
	kept := tables[:0]
	for _, table := range tables {
		if table.Type == assignmentType {
			kept = append(kept, table)
		}
	}
	return kept
}

func (s *StatisticsService) loadGradeSources(ctx context.Context, classID string, filter models.AssignmentFilter) ([]models.AssignmentRecord, []models.AssignmentWeight, error) {
	start := time.Now()
	assignments, err := s.assignments.ListAssignments(ctx, classID, filter)
	s.metrics.ObserveDBQuery("list_assignments", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load assignments")
	}
	weights, err := s.weights.ListWeights(ctx, classID)
	if err != nil {
		return nil, nil, err
	}
	return assignments, weights, nil
}

func (s *StatisticsService) summarizeAttendance(classID string, input summary.AttendanceInput) (*models.AttendanceReport, error) {
	start := time.Now()
	report, err := summary.SummarizeAttendance(input)
	s.metrics.ObserveAggregation(aggregationAttendance, time.Since(start))
	if err != nil {
		s.metrics.RecordValidationFailure(aggregationAttendance)
		s.logger.Sugar().Warnw("attendance aggregation rejected", "class_id", classID, "error", err)
		return nil, err
	}
	s.logDiagnostics(aggregationAttendance, classID, report.Diagnostics)
	return report, nil
}

func (s *StatisticsService) summarizeGrades(classID string, input summary.GradeInput) (*models.GradeReport, error) {
	start := time.Now()
	report, err := summary.SummarizeGrades(input)
	s.metrics.ObserveAggregation(aggregationGrades, time.Since(start))
	if err != nil {
		s.metrics.RecordValidationFailure(aggregationGrades)
		s.logger.Sugar().Warnw("grade aggregation rejected", "class_id", classID, "error", err)
		return nil, err
	}
	s.logDiagnostics(aggregationGrades, classID, report.Diagnostics)
	return report, nil
}

func (s *StatisticsService) logDiagnostics(kind, classID string, diagnostics []models.Diagnostic) {
	if len(diagnostics) == 0 {
		return
	}
	s.metrics.RecordDiagnostics(kind, diagnostics)
	for _, diagnostic := range diagnostics {
		s.logger.Sugar().Warnw("aggregation diagnostic",
			"kind", kind,
			"class_id", classID,
			"code", diagnostic.Code,
			"subject", diagnostic.Subject,
			"record_id", diagnostic.RecordID,
			"student_id", diagnostic.StudentID,
			"message", diagnostic.Message,
		)
	}
}

func parseSortState(rawKey, rawOrder string) (summary.SortState, error) {
	var state summary.SortState
	if rawKey == "" {
		if rawOrder != "" {
			return state, appErrors.Clone(appErrors.ErrValidation, "order requires a sort key")
		}
		return state, nil
	}
	key, err := summary.ParseKey(rawKey)
	if err != nil {
		return state, err
	}
	direction, err := summary.ParseDirection(rawOrder)
	if err != nil {
		return state, err
	}
	state.Set(key, direction)
	return state, nil
}

func sortMeta(state summary.SortState) *dto.SortMeta {
	key, active := state.Active()
	if !active {
		return nil
	}
	return &dto.SortMeta{Key: key.String(), Direction: string(state.Direction)}
}

func finalsBySubject(scores []models.FinalScore) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, score := range scores {
		if out[score.Subject] == nil {
			out[score.Subject] = make(map[string]float64)
		}
		out[score.Subject][score.StudentID] = score.Score
	}
	return out
}

// sortFinalScores orders final scores within each subject block, keeping subjects in order.
func sortFinalScores(scores []models.FinalScore, state summary.SortState, sorter *summary.Sorter) {
	key, active := state.Active()
	if !active || (key.Kind != summary.KeyName && key.Kind != summary.KeyFinalScore) {
		return
	}
	for start := 0; start < len(scores); {
		end := start
		for end < len(scores) && scores[end].Subject == scores[start].Subject {
			end++
		}
		state.Apply(summary.FinalScoreRows(scores[start:end]), sorter)
		start = end
	}
}
