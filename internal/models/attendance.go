package models

import "time"

// AttendanceStatus represents the status recorded for a student in a journal.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusSick    AttendanceStatus = "sick"
	AttendanceStatusExcused AttendanceStatus = "excused"
	AttendanceStatusPending AttendanceStatus = "pending"
)

// AttendanceStatuses lists every status in display order.
var AttendanceStatuses = []AttendanceStatus{
	AttendanceStatusPresent,
	AttendanceStatusAbsent,
	AttendanceStatusLate,
	AttendanceStatusSick,
	AttendanceStatusExcused,
	AttendanceStatusPending,
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate,
		AttendanceStatusSick, AttendanceStatusExcused, AttendanceStatusPending:
		return true
	default:
		return false
	}
}

// JournalRecord is one attendance-taking session for one subject on one date.
type JournalRecord struct {
	ID        string         `db:"id" json:"id"`
	ClassID   string         `db:"class_id" json:"class_id"`
	Subject   string         `db:"subject" json:"subject"`
	Date      time.Time      `db:"date" json:"date"`
	Entries   []JournalEntry `db:"-" json:"entries"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// JournalEntry captures one student's status within a journal.
type JournalEntry struct {
	StudentID string           `json:"studentId"`
	Status    AttendanceStatus `json:"status"`
	Note      *string          `json:"note,omitempty"`
}

// JournalFilter scopes journal listing queries.
type JournalFilter struct {
	Subject  string
	DateFrom *time.Time
	DateTo   *time.Time
}
