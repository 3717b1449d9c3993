package summary

import (
	"sort"
	"time"

	"github.com/noah-isme/classbook-api/internal/models"
)

// BuildReportRows flattens one student's attendance and grade summaries into
// one row per subject the student has any record in. Grade cells hold the mean
// of graded work per type and default to 0.
func BuildReportRows(studentID string, attendance *models.AttendanceReport, grades *models.GradeReport, note string) []models.ReportRow {
	rows, _ := buildRows(studentID, attendance, grades, note)
	return rows
}

// BuildStudentReport assembles the exporter payload for one student.
func BuildStudentReport(profile models.StudentProfile, attendance *models.AttendanceReport, grades *models.GradeReport, weights []models.AssignmentWeight, note string, generatedAt time.Time) *models.StudentReport {
	rows, graded := buildRows(profile.ID, attendance, grades, note)

	sum := 0.0
	for _, row := range rows {
		if graded[row.Subject] {
			sum += row.FinalScore
		}
	}
	average := 0.0
	if len(graded) > 0 {
		average = round2(sum / float64(len(graded)))
	}

	return &models.StudentReport{
		Profile:      profile,
		Rows:         rows,
		AverageScore: average,
		Weights:      reportWeights(rows, weights),
		Note:         note,
		GeneratedAt:  generatedAt,
	}
}

func buildRows(studentID string, attendance *models.AttendanceReport, grades *models.GradeReport, note string) ([]models.ReportRow, map[string]bool) {
	rows := make(map[string]*models.ReportRow)
	graded := make(map[string]bool)
	rowFor := func(subject string) *models.ReportRow {
		row, ok := rows[subject]
		if !ok {
			row = &models.ReportRow{Subject: subject, Note: note}
			rows[subject] = row
		}
		return row
	}

	if attendance != nil {
		for subject, summaries := range attendance.Subjects {
			for _, summary := range summaries {
				if summary.StudentID != studentID || summary.TotalJournals == 0 {
					continue
				}
				row := rowFor(subject)
				row.Present = summary.Counts[models.AttendanceStatusPresent]
				row.Absent = summary.Counts[models.AttendanceStatusAbsent]
				row.Late = summary.Counts[models.AttendanceStatusLate]
				row.Sick = summary.Counts[models.AttendanceStatusSick]
				row.Excused = summary.Counts[models.AttendanceStatusExcused]
				row.Pending = summary.Counts[models.AttendanceStatusPending]
				break
			}
		}
	}

	if grades != nil {
		for _, final := range grades.FinalScores {
			if final.StudentID != studentID {
				continue
			}
			row := rowFor(final.Subject)
			row.FinalScore = final.Score
			for _, item := range final.Breakdown {
				setTypeCell(row, item)
			}
			graded[final.Subject] = true
		}
	}

	result := make([]models.ReportRow, 0, len(rows))
	for _, subject := range sortedSubjects(rows) {
		result = append(result, *rows[subject])
	}
	return result, graded
}

func setTypeCell(row *models.ReportRow, item models.TypeContribution) {
	value := 0.0
	if item.Mean != nil {
		value = *item.Mean
	}
	switch item.Type {
	case models.AssignmentTypeHomework:
		row.Homework = value
	case models.AssignmentTypeQuiz:
		row.Quiz = value
	case models.AssignmentTypeExam:
		row.Exam = value
	case models.AssignmentTypeProject:
		row.Project = value
	case models.AssignmentTypeFinalExam:
		row.FinalExam = value
	}
}

func reportWeights(rows []models.ReportRow, weights []models.AssignmentWeight) []models.AssignmentWeight {
	subjects := make(map[string]bool, len(rows))
	for _, row := range rows {
		subjects[row.Subject] = true
	}
	selected := make([]models.AssignmentWeight, 0, len(weights))
	for _, table := range weights {
		if subjects[table.Subject] {
			selected = append(selected, table)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Subject < selected[j].Subject })
	return selected
}
