package models

import "time"

// AssignmentType classifies gradable work.
type AssignmentType string

const (
	AssignmentTypeHomework  AssignmentType = "homework"
	AssignmentTypeQuiz      AssignmentType = "quiz"
	AssignmentTypeExam      AssignmentType = "exam"
	AssignmentTypeProject   AssignmentType = "project"
	AssignmentTypeFinalExam AssignmentType = "finalExam"
)

// AssignmentTypes lists every assignment type in report column order.
var AssignmentTypes = []AssignmentType{
	AssignmentTypeHomework,
	AssignmentTypeQuiz,
	AssignmentTypeExam,
	AssignmentTypeProject,
	AssignmentTypeFinalExam,
}

// Valid returns true when the type is a supported value.
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentTypeHomework, AssignmentTypeQuiz, AssignmentTypeExam,
		AssignmentTypeProject, AssignmentTypeFinalExam:
		return true
	default:
		return false
	}
}

// Label returns the human readable column label.
func (t AssignmentType) Label() string {
	switch t {
	case AssignmentTypeHomework:
		return "Homework"
	case AssignmentTypeQuiz:
		return "Quiz"
	case AssignmentTypeExam:
		return "Exam"
	case AssignmentTypeProject:
		return "Project"
	case AssignmentTypeFinalExam:
		return "Final Exam"
	default:
		return string(t)
	}
}

// AssignmentRecord is one gradable task within a subject.
type AssignmentRecord struct {
	ID        string         `db:"id" json:"id"`
	ClassID   string         `db:"class_id" json:"class_id"`
	Subject   string         `db:"subject" json:"subject"`
	Type      AssignmentType `db:"type" json:"type"`
	Title     string         `db:"title" json:"title"`
	Sequence  int64          `db:"sequence" json:"sequence"`
	Grades    []GradeEntry   `db:"-" json:"grades"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// GradeEntry holds a student's score for an assignment. A nil score means not yet graded.
type GradeEntry struct {
	StudentID string   `json:"studentId"`
	Score     *float64 `json:"score,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
}

// AssignmentFilter scopes assignment listing queries.
type AssignmentFilter struct {
	Subject string
	Type    AssignmentType
}
