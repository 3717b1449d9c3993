// Package summary folds journals and assignments into the per-subject,
// per-student tables used by the statistics views and report exports.
//
// Every function in this package is pure: callers fetch the records first and
// the results are recomputed on each call.
package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

func validationError(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(format, args...))
}

func rosterIndex(roster []models.StudentProfile) map[string]int {
	index := make(map[string]int, len(roster))
	for i, student := range roster {
		if _, exists := index[student.ID]; exists {
			continue
		}
		index[student.ID] = i
	}
	return index
}

func sortedSubjects[V any](groups map[string]V) []string {
	subjects := make([]string, 0, len(groups))
	for subject := range groups {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func orphanDiagnostic(subject, recordID, studentID string) models.Diagnostic {
	return models.Diagnostic{
		Code:      models.DiagnosticNotFound,
		Subject:   subject,
		RecordID:  recordID,
		StudentID: studentID,
		Message:   fmt.Sprintf("student %s is not on the class roster", studentID),
	}
}
