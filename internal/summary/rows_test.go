package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbook-api/internal/models"
)

func sampleReports(t *testing.T) (*models.AttendanceReport, *models.GradeReport, []models.AssignmentWeight) {
	t.Helper()
	attendance, err := SummarizeAttendance(AttendanceInput{
		Roster:   testRoster(),
		Subjects: []string{"Art"},
		Journals: []models.JournalRecord{
			journal("j1", "Math", 1, entry("s-alice", models.AttendanceStatusPresent), entry("s-bob", models.AttendanceStatusSick)),
			journal("j2", "Math", 2, entry("s-alice", models.AttendanceStatusExcused)),
			journal("j3", "History", 3, entry("s-bob", models.AttendanceStatusPresent)),
		},
	})
	require.NoError(t, err)

	weights := []models.AssignmentWeight{
		{Subject: "Math", Weights: models.WeightMap{models.AssignmentTypeHomework: 50, models.AssignmentTypeExam: 50}},
		{Subject: "Chemistry", Weights: models.WeightMap{models.AssignmentTypeFinalExam: 100}},
		{Subject: "Geography", Weights: models.WeightMap{models.AssignmentTypeQuiz: 100}},
	}
	grades, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-1", "Math", models.AssignmentTypeHomework, 1, graded("s-alice", 80)),
			assignment("hw-2", "Math", models.AssignmentTypeHomework, 2, graded("s-alice", 100)),
			assignment("fx-1", "Chemistry", models.AssignmentTypeFinalExam, 1, graded("s-alice", 70)),
		},
		Weights: weights,
	})
	require.NoError(t, err)
	return attendance, grades, weights
}

func TestBuildReportRowsOneRowPerSubject(t *testing.T) {
	attendance, grades, _ := sampleReports(t)

	rows := BuildReportRows("s-alice", attendance, grades, "keep it up")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Chemistry", "History", "Math"}, []string{rows[0].Subject, rows[1].Subject, rows[2].Subject})

	chemistry := rows[0]
	assert.Equal(t, 70.0, chemistry.FinalExam)
	assert.Equal(t, 70.0, chemistry.FinalScore)
	assert.Equal(t, 0, chemistry.Present)

	history := rows[1]
	assert.Equal(t, 0.0, history.FinalScore)
	assert.Equal(t, 0, history.Present)
	assert.Equal(t, 0.0, history.Homework)

	math := rows[2]
	assert.Equal(t, 90.0, math.Homework)
	assert.Equal(t, 0.0, math.Exam)
	assert.Equal(t, 45.0, math.FinalScore)
	assert.Equal(t, 1, math.Present)
	assert.Equal(t, 1, math.Excused)
	assert.Equal(t, "keep it up", math.Note)
}

func TestBuildReportRowsAttendanceOnlySubject(t *testing.T) {
	attendance, grades, _ := sampleReports(t)

	rows := BuildReportRows("s-bob", attendance, grades, "")
	subjects := make([]string, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.Subject)
	}
	assert.Equal(t, []string{"Chemistry", "History", "Math"}, subjects)
	assert.Equal(t, 1, rows[1].Present)
	assert.Equal(t, 0.0, rows[1].FinalScore)
	assert.Equal(t, 1, rows[2].Sick)
	assert.NotContains(t, subjects, "Art")
	assert.NotContains(t, subjects, "Geography")
}

func TestBuildReportRowsUnknownStudent(t *testing.T) {
	attendance, grades, _ := sampleReports(t)
	assert.Empty(t, BuildReportRows("s-nobody", attendance, grades, ""))
	assert.Empty(t, BuildReportRows("s-alice", nil, nil, ""))
}

func TestBuildStudentReport(t *testing.T) {
	attendance, grades, weights := sampleReports(t)
	generatedAt := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

	report := BuildStudentReport(testRoster()[0], attendance, grades, weights, "note", generatedAt)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, 57.5, report.AverageScore)
	assert.Equal(t, "Alice", report.Profile.Name)
	assert.Equal(t, generatedAt, report.GeneratedAt)
	require.Len(t, report.Weights, 2)
	assert.Equal(t, "Chemistry", report.Weights[0].Subject)
	assert.Equal(t, "Math", report.Weights[1].Subject)
}

func TestBuildReportRowsIdempotent(t *testing.T) {
	attendance, grades, _ := sampleReports(t)
	first, err := json.Marshal(BuildReportRows("s-alice", attendance, grades, "n"))
	require.NoError(t, err)

	attendanceAgain, gradesAgain, _ := sampleReports(t)
	second, err := json.Marshal(BuildReportRows("s-alice", attendanceAgain, gradesAgain, "n"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
