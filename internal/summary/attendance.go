package summary

import (
	"github.com/noah-isme/classbook-api/internal/models"
)

// AttendanceInput carries the records folded by SummarizeAttendance. Journals
// must already be restricted to one class and to any subject or date filter.
type AttendanceInput struct {
	Journals []models.JournalRecord
	Roster   []models.StudentProfile
	// Subjects lists subjects that must appear even without journals.
	Subjects []string
}

// SummarizeAttendance counts every roster student's statuses per subject.
// Invalid statuses and duplicate entries abort the whole call; entries for
// students outside the roster are skipped and reported as diagnostics.
func SummarizeAttendance(in AttendanceInput) (*models.AttendanceReport, error) {
	if err := validateJournals(in.Journals); err != nil {
		return nil, err
	}

	groups := make(map[string][]models.JournalRecord)
	for _, subject := range in.Subjects {
		if _, ok := groups[subject]; !ok {
			groups[subject] = nil
		}
	}
	for _, journal := range in.Journals {
		groups[journal.Subject] = append(groups[journal.Subject], journal)
	}

	index := rosterIndex(in.Roster)
	report := &models.AttendanceReport{Subjects: make(map[string][]models.AttendanceSummary, len(groups))}
	for _, subject := range sortedSubjects(groups) {
		journals := groups[subject]
		summaries := make([]models.AttendanceSummary, len(in.Roster))
		for i, student := range in.Roster {
			summaries[i] = newAttendanceSummary(student, len(journals))
		}
		for _, journal := range journals {
			for _, entry := range journal.Entries {
				pos, ok := index[entry.StudentID]
				if !ok {
					report.Diagnostics = append(report.Diagnostics, orphanDiagnostic(subject, journal.ID, entry.StudentID))
					continue
				}
				summaries[pos].Counts[entry.Status]++
			}
		}
		for i := range summaries {
			summaries[i].Rate = attendanceRate(summaries[i])
		}
		report.Subjects[subject] = summaries
	}

	return report, nil
}

func validateJournals(journals []models.JournalRecord) error {
	for _, journal := range journals {
		seen := make(map[string]struct{}, len(journal.Entries))
		for _, entry := range journal.Entries {
			if !entry.Status.Valid() {
				return validationError("journal %s: student %s has invalid status %q", journal.ID, entry.StudentID, entry.Status)
			}
			if _, dup := seen[entry.StudentID]; dup {
				return validationError("journal %s: duplicate entry for student %s", journal.ID, entry.StudentID)
			}
			seen[entry.StudentID] = struct{}{}
		}
	}
	return nil
}

func newAttendanceSummary(student models.StudentProfile, totalJournals int) models.AttendanceSummary {
	counts := make(map[models.AttendanceStatus]int, len(models.AttendanceStatuses))
	for _, status := range models.AttendanceStatuses {
		counts[status] = 0
	}
	return models.AttendanceSummary{
		StudentID:     student.ID,
		Name:          student.Name,
		Counts:        counts,
		TotalJournals: totalJournals,
	}
}

// attendanceRate is the share of journals attended, present or late, as a percentage.
func attendanceRate(s models.AttendanceSummary) float64 {
	if s.TotalJournals == 0 {
		return 0
	}
	attended := s.Counts[models.AttendanceStatusPresent] + s.Counts[models.AttendanceStatusLate]
	return round2(float64(attended) / float64(s.TotalJournals) * 100)
}
