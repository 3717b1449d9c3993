package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/classbook-api/internal/models"
)

// ScorePolicy decides how types without graded work count toward a final score.
type ScorePolicy string

const (
	// PolicyMissingAsZero lets ungraded types contribute zero at their full weight.
	PolicyMissingAsZero ScorePolicy = "missing_as_zero"
	// PolicyRenormalize spreads the weight over types that have graded work.
	PolicyRenormalize ScorePolicy = "renormalize"
)

// GradeInput carries the records folded by SummarizeGrades.
type GradeInput struct {
	Assignments []models.AssignmentRecord
	Roster      []models.StudentProfile
	Weights     []models.AssignmentWeight
	Policy      ScorePolicy
}

// SummarizeGrades pivots assignments into positionally aligned tables per
// subject and type, then computes one weighted final score per subject and
// roster student.
func SummarizeGrades(in GradeInput) (*models.GradeReport, error) {
	if err := validateAssignments(in.Assignments); err != nil {
		return nil, err
	}

	index := rosterIndex(in.Roster)
	report := &models.GradeReport{
		Tables:      []models.GradeTable{},
		FinalScores: []models.FinalScore{},
	}

	for _, assignment := range canonicalOrder(in.Assignments) {
		last := len(report.Tables) - 1
		if last < 0 || report.Tables[last].Subject != assignment.Subject || report.Tables[last].Type != assignment.Type {
			report.Tables = append(report.Tables, newGradeTable(assignment.Subject, assignment.Type, in.Roster))
			last++
		}
		table := &report.Tables[last]

		col := len(table.Columns)
		table.Columns = append(table.Columns, models.AssignmentColumn{
			Index:        col,
			AssignmentID: assignment.ID,
			Title:        assignment.Title,
			Label:        fmt.Sprintf("%s %d", assignment.Type.Label(), col+1),
		})
		for i := range table.Rows {
			table.Rows[i].Cells = append(table.Rows[i].Cells, models.GradeCell{AssignmentID: assignment.ID})
		}

		for _, grade := range assignment.Grades {
			pos, ok := index[grade.StudentID]
			if !ok {
				report.Diagnostics = append(report.Diagnostics, orphanDiagnostic(assignment.Subject, assignment.ID, grade.StudentID))
				continue
			}
			cell := &table.Rows[pos].Cells[col]
			if grade.Score != nil {
				score := *grade.Score
				cell.Score = &score
			}
			if grade.Notes != nil {
				cell.Notes = *grade.Notes
			}
		}
	}

	finals, diagnostics := finalScores(report.Tables, in.Roster, IndexWeights(in.Weights), in.Policy)
	report.FinalScores = finals
	report.Diagnostics = append(report.Diagnostics, diagnostics...)
	return report, nil
}

func validateAssignments(assignments []models.AssignmentRecord) error {
	for _, assignment := range assignments {
		if !assignment.Type.Valid() {
			return validationError("assignment %s: unknown assignment type %q", assignment.ID, assignment.Type)
		}
		seen := make(map[string]struct{}, len(assignment.Grades))
		for _, grade := range assignment.Grades {
			if _, dup := seen[grade.StudentID]; dup {
				return validationError("assignment %s: duplicate grade for student %s", assignment.ID, grade.StudentID)
			}
			seen[grade.StudentID] = struct{}{}
			if grade.Score == nil {
				continue
			}
			if score := *grade.Score; math.IsNaN(score) || score < 0 || score > 100 {
				return validationError("assignment %s: student %s has score %v outside 0-100", assignment.ID, grade.StudentID, score)
			}
		}
	}
	return nil
}

// canonicalOrder sorts by subject, type, then creation sequence with the
// creation time and record ID breaking ties.
func canonicalOrder(assignments []models.AssignmentRecord) []models.AssignmentRecord {
	ordered := make([]models.AssignmentRecord, len(assignments))
	copy(ordered, assignments)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
			return ra < rb
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ordered
}

func typeRank(t models.AssignmentType) int {
	for i, candidate := range models.AssignmentTypes {
		if candidate == t {
			return i
		}
	}
	return len(models.AssignmentTypes)
}

func newGradeTable(subject string, assignmentType models.AssignmentType, roster []models.StudentProfile) models.GradeTable {
	rows := make([]models.GradeRow, len(roster))
	for i, student := range roster {
		rows[i] = models.GradeRow{StudentID: student.ID, Name: student.Name, Cells: models.GradeSummary{}}
	}
	return models.GradeTable{
		Subject: subject,
		Type:    assignmentType,
		Columns: []models.AssignmentColumn{},
		Rows:    rows,
	}
}

func finalScores(tables []models.GradeTable, roster []models.StudentProfile, weightIndex map[string]models.WeightMap, policy ScorePolicy) ([]models.FinalScore, []models.Diagnostic) {
	bySubject := make(map[string]map[models.AssignmentType]*models.GradeTable)
	for i := range tables {
		table := &tables[i]
		if bySubject[table.Subject] == nil {
			bySubject[table.Subject] = make(map[models.AssignmentType]*models.GradeTable)
		}
		bySubject[table.Subject][table.Type] = table
	}

	var diagnostics []models.Diagnostic
	finals := make([]models.FinalScore, 0, len(bySubject)*len(roster))
	for _, subject := range sortedSubjects(bySubject) {
		byType := bySubject[subject]
		weights, configured := weightIndex[subject]
		diagnostics = append(diagnostics, weightDiagnostics(subject, byType, weights, configured)...)

		for pos, student := range roster {
			final := models.FinalScore{
				Subject:   subject,
				StudentID: student.ID,
				Name:      student.Name,
				Weighted:  configured,
				Breakdown: make([]models.TypeContribution, 0, len(models.AssignmentTypes)),
			}
			final.Score = weightedScore(&final, byType, weights, pos, policy)
			finals = append(finals, final)
		}
	}
	return finals, diagnostics
}

func weightedScore(final *models.FinalScore, byType map[models.AssignmentType]*models.GradeTable, weights models.WeightMap, pos int, policy ScorePolicy) float64 {
	means := make(map[models.AssignmentType]float64, len(models.AssignmentTypes))
	denominator := 100.0
	if policy == PolicyRenormalize {
		denominator = 0
	}

	for _, assignmentType := range models.AssignmentTypes {
		mean, graded := meanScore(byType[assignmentType], pos)
		contribution := models.TypeContribution{Type: assignmentType, Weight: weights[assignmentType], Graded: graded}
		if graded > 0 {
			rounded := round2(mean)
			contribution.Mean = &rounded
			means[assignmentType] = mean
			if policy == PolicyRenormalize {
				denominator += weights[assignmentType]
			}
		}
		final.Breakdown = append(final.Breakdown, contribution)
	}

	if denominator == 0 {
		return 0
	}
	total := 0.0
	for i := range final.Breakdown {
		item := &final.Breakdown[i]
		mean, ok := means[item.Type]
		if !ok || item.Weight == 0 {
			continue
		}
		share := mean * item.Weight / denominator
		item.Contribution = round2(share)
		total += share
	}
	return round2(total)
}

// meanScore averages graded cells of one student's row; unset scores are skipped.
func meanScore(table *models.GradeTable, pos int) (float64, int) {
	if table == nil || pos >= len(table.Rows) {
		return 0, 0
	}
	sum := 0.0
	graded := 0
	for _, cell := range table.Rows[pos].Cells {
		if cell.Score == nil {
			continue
		}
		sum += *cell.Score
		graded++
	}
	if graded == 0 {
		return 0, 0
	}
	return sum / float64(graded), graded
}

func weightDiagnostics(subject string, byType map[models.AssignmentType]*models.GradeTable, weights models.WeightMap, configured bool) []models.Diagnostic {
	if !configured {
		return []models.Diagnostic{{
			Code:    models.DiagnosticConfiguration,
			Subject: subject,
			Message: fmt.Sprintf("no weights configured for subject %s", subject),
		}}
	}

	var diagnostics []models.Diagnostic
	for _, assignmentType := range models.AssignmentTypes {
		if byType[assignmentType] == nil {
			continue
		}
		if _, ok := weights[assignmentType]; !ok {
			diagnostics = append(diagnostics, models.Diagnostic{
				Code:    models.DiagnosticConfiguration,
				Subject: subject,
				Message: fmt.Sprintf("assignment type %s has no weight in subject %s", assignmentType, subject),
			})
		}
	}
	if total := weights.Total(); math.Abs(total-100) > WeightTolerance {
		diagnostics = append(diagnostics, models.Diagnostic{
			Code:    models.DiagnosticConfiguration,
			Subject: subject,
			Message: fmt.Sprintf("weights for subject %s total %.2f instead of 100", subject, total),
		})
	}
	return diagnostics
}
