package models

import "time"

// Diagnostic codes attached to aggregation results.
const (
	DiagnosticNotFound      = "NOT_FOUND"
	DiagnosticConfiguration = "CONFIGURATION_ERROR"
)

// Diagnostic records a tolerated problem found while aggregating.
type Diagnostic struct {
	Code      string `json:"code"`
	Subject   string `json:"subject,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Message   string `json:"message"`
}

// AttendanceSummary counts one student's statuses for one subject.
type AttendanceSummary struct {
	StudentID     string                   `json:"student_id"`
	Name          string                   `json:"name"`
	Counts        map[AttendanceStatus]int `json:"counts"`
	TotalJournals int                      `json:"total_journals"`
	Rate          float64                  `json:"attendance_rate"`
}

// Recorded returns the number of journal entries found for the student.
func (s AttendanceSummary) Recorded() int {
	total := 0
	for _, count := range s.Counts {
		total += count
	}
	return total
}

// AttendanceReport holds attendance summaries keyed by subject.
type AttendanceReport struct {
	Subjects    map[string][]AttendanceSummary `json:"subjects"`
	Diagnostics []Diagnostic                   `json:"diagnostics,omitempty"`
}

// GradeCell is one positional slot in a student's grade list.
type GradeCell struct {
	AssignmentID string   `json:"assignment_id"`
	Score        *float64 `json:"score"`
	Notes        string   `json:"notes,omitempty"`
}

// GradeSummary is a student's ordered list of cells for one subject and type.
type GradeSummary []GradeCell

// AssignmentColumn describes the canonical position of an assignment.
type AssignmentColumn struct {
	Index        int    `json:"index"`
	AssignmentID string `json:"assignment_id"`
	Title        string `json:"title"`
	Label        string `json:"label"`
}

// GradeRow is one student's row in a grade table.
type GradeRow struct {
	StudentID string       `json:"student_id"`
	Name      string       `json:"name"`
	Cells     GradeSummary `json:"cells"`
}

// GradeTable pivots every assignment of one subject and type into aligned columns.
type GradeTable struct {
	Subject string             `json:"subject"`
	Type    AssignmentType     `json:"type"`
	Columns []AssignmentColumn `json:"columns"`
	Rows    []GradeRow         `json:"rows"`
}

// TypeContribution explains one assignment type's share of a final score.
type TypeContribution struct {
	Type         AssignmentType `json:"type"`
	Weight       float64        `json:"weight"`
	Mean         *float64       `json:"mean"`
	Graded       int            `json:"graded"`
	Contribution float64        `json:"contribution"`
}

// FinalScore is the weighted score of one student in one subject.
type FinalScore struct {
	Subject   string             `json:"subject"`
	StudentID string             `json:"student_id"`
	Name      string             `json:"name"`
	Score     float64            `json:"score"`
	Weighted  bool               `json:"weighted"`
	Breakdown []TypeContribution `json:"breakdown"`
}

// GradeReport holds grade tables and final scores for a class.
type GradeReport struct {
	Tables      []GradeTable `json:"tables"`
	FinalScores []FinalScore `json:"final_scores"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// ReportRow is the flat per-subject row consumed by exporters.
type ReportRow struct {
	Subject    string  `json:"subject"`
	Homework   float64 `json:"homework"`
	Quiz       float64 `json:"quiz"`
	Exam       float64 `json:"exam"`
	Project    float64 `json:"project"`
	FinalExam  float64 `json:"final_exam"`
	FinalScore float64 `json:"final_score"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Late       int     `json:"late"`
	Sick       int     `json:"sick"`
	Excused    int     `json:"excused"`
	Pending    int     `json:"pending"`
	Note       string  `json:"note,omitempty"`
}

// StudentReport bundles everything the report exporters render for one student.
type StudentReport struct {
	Profile      StudentProfile     `json:"profile"`
	Rows         []ReportRow        `json:"rows"`
	AverageScore float64            `json:"average_score"`
	Weights      []AssignmentWeight `json:"weights"`
	Note         string             `json:"note,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
