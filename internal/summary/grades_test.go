package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

func score(v float64) *float64 { return &v }

func assignment(id, subject string, assignmentType models.AssignmentType, sequence int64, grades ...models.GradeEntry) models.AssignmentRecord {
	return models.AssignmentRecord{
		ID:        id,
		ClassID:   "class-1",
		Subject:   subject,
		Type:      assignmentType,
		Title:     id,
		Sequence:  sequence,
		Grades:    grades,
		CreatedAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
}

func graded(studentID string, v float64) models.GradeEntry {
	return models.GradeEntry{StudentID: studentID, Score: score(v)}
}

func ungraded(studentID string) models.GradeEntry {
	return models.GradeEntry{StudentID: studentID}
}

func mathWeights(weights models.WeightMap) []models.AssignmentWeight {
	return []models.AssignmentWeight{{ClassID: "class-1", Subject: "Math", Weights: weights}}
}

func findFinal(t *testing.T, report *models.GradeReport, subject, studentID string) models.FinalScore {
	t.Helper()
	for _, final := range report.FinalScores {
		if final.Subject == subject && final.StudentID == studentID {
			return final
		}
	}
	t.Fatalf("final score for %s/%s not found", subject, studentID)
	return models.FinalScore{}
}

func TestSummarizeGradesWeightedScoreMissingCountsAsZero(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-1", "Math", models.AssignmentTypeHomework, 1, graded("s-alice", 80)),
			assignment("hw-2", "Math", models.AssignmentTypeHomework, 2, graded("s-alice", 100)),
			assignment("ex-1", "Math", models.AssignmentTypeExam, 3, ungraded("s-alice")),
		},
		Weights: mathWeights(models.WeightMap{models.AssignmentTypeHomework: 50, models.AssignmentTypeExam: 50}),
	})
	require.NoError(t, err)

	alice := findFinal(t, report, "Math", "s-alice")
	assert.Equal(t, 45.0, alice.Score)
	assert.True(t, alice.Weighted)
	require.Len(t, alice.Breakdown, len(models.AssignmentTypes))
	assert.Equal(t, 90.0, *alice.Breakdown[0].Mean)
	assert.Equal(t, 45.0, alice.Breakdown[0].Contribution)
	assert.Nil(t, alice.Breakdown[2].Mean)
	assert.Equal(t, 0.0, alice.Breakdown[2].Contribution)
	assert.Empty(t, report.Diagnostics)
}

func TestSummarizeGradesRenormalizePolicy(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-1", "Math", models.AssignmentTypeHomework, 1, graded("s-alice", 80)),
			assignment("hw-2", "Math", models.AssignmentTypeHomework, 2, graded("s-alice", 100)),
		},
		Weights: mathWeights(models.WeightMap{models.AssignmentTypeHomework: 50, models.AssignmentTypeExam: 50}),
		Policy:  PolicyRenormalize,
	})
	require.NoError(t, err)

	assert.Equal(t, 90.0, findFinal(t, report, "Math", "s-alice").Score)
	assert.Equal(t, 0.0, findFinal(t, report, "Math", "s-bob").Score)
}

func TestSummarizeGradesPositionalAlignment(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-c", "Math", models.AssignmentTypeHomework, 3, graded("s-bob", 70)),
			assignment("hw-a", "Math", models.AssignmentTypeHomework, 1, graded("s-alice", 60)),
			assignment("hw-b", "Math", models.AssignmentTypeHomework, 2, graded("s-alice", 90), graded("s-bob", 50)),
		},
	})
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)

	table := report.Tables[0]
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "hw-a", table.Columns[0].AssignmentID)
	assert.Equal(t, "Homework 1", table.Columns[0].Label)
	assert.Equal(t, "hw-c", table.Columns[2].AssignmentID)

	for _, row := range table.Rows {
		require.Len(t, row.Cells, len(table.Columns))
		for i, cell := range row.Cells {
			assert.Equal(t, table.Columns[i].AssignmentID, cell.AssignmentID)
		}
	}
	alice, bob := table.Rows[0], table.Rows[1]
	assert.Equal(t, 60.0, *alice.Cells[0].Score)
	assert.Nil(t, alice.Cells[2].Score)
	assert.Nil(t, bob.Cells[0].Score)
	assert.Equal(t, 70.0, *bob.Cells[2].Score)
}

func TestSummarizeGradesTieBreaksByCreationThenID(t *testing.T) {
	early := assignment("q-z", "Math", models.AssignmentTypeQuiz, 1)
	early.CreatedAt = early.CreatedAt.Add(-time.Hour)
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("q-b", "Math", models.AssignmentTypeQuiz, 1),
			assignment("q-a", "Math", models.AssignmentTypeQuiz, 1),
			early,
		},
	})
	require.NoError(t, err)

	columns := report.Tables[0].Columns
	assert.Equal(t, []string{"q-z", "q-a", "q-b"}, []string{columns[0].AssignmentID, columns[1].AssignmentID, columns[2].AssignmentID})
}

func TestSummarizeGradesOrderInvariant(t *testing.T) {
	assignments := []models.AssignmentRecord{
		assignment("hw-1", "Math", models.AssignmentTypeHomework, 1, graded("s-alice", 81.5), graded("s-bob", 40)),
		assignment("qz-1", "Math", models.AssignmentTypeQuiz, 2, graded("s-alice", 77.25)),
		assignment("hw-2", "Math", models.AssignmentTypeHomework, 3, graded("s-alice", 93.1), graded("s-bob", 66.6)),
		assignment("ex-1", "Math", models.AssignmentTypeExam, 4, graded("s-bob", 88)),
		assignment("pr-1", "Biology", models.AssignmentTypeProject, 1, graded("s-alice", 70)),
	}
	weights := []models.AssignmentWeight{
		{Subject: "Math", Weights: models.WeightMap{models.AssignmentTypeHomework: 30, models.AssignmentTypeQuiz: 20, models.AssignmentTypeExam: 50}},
		{Subject: "Biology", Weights: models.WeightMap{models.AssignmentTypeProject: 100}},
	}

	forward, err := SummarizeGrades(GradeInput{Roster: testRoster(), Assignments: assignments, Weights: weights})
	require.NoError(t, err)

	reversed := make([]models.AssignmentRecord, len(assignments))
	for i, a := range assignments {
		reversed[len(assignments)-1-i] = a
	}
	backward, err := SummarizeGrades(GradeInput{Roster: testRoster(), Assignments: reversed, Weights: weights})
	require.NoError(t, err)

	a, err := json.Marshal(forward)
	require.NoError(t, err)
	b, err := json.Marshal(backward)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, 70.0, findFinal(t, forward, "Biology", "s-alice").Score)
}

func TestSummarizeGradesMissingWeightsIsConfigurationDiagnostic(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-1", "Physics", models.AssignmentTypeHomework, 1, graded("s-alice", 90)),
		},
	})
	require.NoError(t, err)

	final := findFinal(t, report, "Physics", "s-alice")
	assert.Equal(t, 0.0, final.Score)
	assert.False(t, final.Weighted)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticConfiguration, report.Diagnostics[0].Code)
	assert.Equal(t, "Physics", report.Diagnostics[0].Subject)
}

func TestSummarizeGradesUnweightedTypeContributesZero(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-1", "Math", models.AssignmentTypeHomework, 1, graded("s-alice", 80)),
			assignment("pr-1", "Math", models.AssignmentTypeProject, 2, graded("s-alice", 100)),
		},
		Weights: mathWeights(models.WeightMap{models.AssignmentTypeHomework: 100}),
	})
	require.NoError(t, err)

	assert.Equal(t, 80.0, findFinal(t, report, "Math", "s-alice").Score)
	require.Len(t, report.Diagnostics, 1)
	assert.Contains(t, report.Diagnostics[0].Message, "project")
}

func TestSummarizeGradesFlagsWeightTotal(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-1", "Math", models.AssignmentTypeHomework, 1, graded("s-alice", 80)),
		},
		Weights: mathWeights(models.WeightMap{models.AssignmentTypeHomework: 40}),
	})
	require.NoError(t, err)

	assert.Equal(t, 32.0, findFinal(t, report, "Math", "s-alice").Score)
	require.Len(t, report.Diagnostics, 1)
	assert.Contains(t, report.Diagnostics[0].Message, "40.00")
}

func TestSummarizeGradesSkipsOrphans(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("hw-1", "Math", models.AssignmentTypeHomework, 1, graded("s-ghost", 80), graded("s-bob", 60)),
		},
		Weights: mathWeights(models.WeightMap{models.AssignmentTypeHomework: 100}),
	})
	require.NoError(t, err)

	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticNotFound, report.Diagnostics[0].Code)
	assert.Equal(t, "hw-1", report.Diagnostics[0].RecordID)
	assert.Len(t, report.Tables[0].Rows, 2)
	assert.Equal(t, 60.0, findFinal(t, report, "Math", "s-bob").Score)
}

func TestSummarizeGradesRejectsOutOfRangeScore(t *testing.T) {
	_, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("ex-9", "Math", models.AssignmentTypeExam, 1, graded("s-bob", 101)),
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "ex-9")
	assert.Contains(t, err.Error(), "s-bob")
}

func TestSummarizeGradesRejectsUnknownType(t *testing.T) {
	_, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("lab-1", "Math", models.AssignmentType("lab"), 1),
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSummarizeGradesKeepsZeroDistinctFromUnset(t *testing.T) {
	report, err := SummarizeGrades(GradeInput{
		Roster: testRoster(),
		Assignments: []models.AssignmentRecord{
			assignment("qz-1", "Math", models.AssignmentTypeQuiz, 1, graded("s-alice", 0), ungraded("s-bob")),
		},
	})
	require.NoError(t, err)

	cells := report.Tables[0].Rows
	require.NotNil(t, cells[0].Cells[0].Score)
	assert.Equal(t, 0.0, *cells[0].Cells[0].Score)
	assert.Nil(t, cells[1].Cells[0].Score)
}
