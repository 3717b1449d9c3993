package summary

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/classbook-api/internal/models"
)

// KeyKind identifies what a sort key reads from a row.
type KeyKind string

const (
	KeyName       KeyKind = "name"
	KeyAttendance KeyKind = "attendance"
	KeyAssignment KeyKind = "assignment"
	KeyFinalScore KeyKind = "finalScore"
)

// Direction is the order applied to the active key.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Key names one sortable column.
type Key struct {
	Kind   KeyKind
	Status models.AttendanceStatus
	Type   models.AssignmentType
	Index  int
}

// NameKey sorts by student name.
func NameKey() Key { return Key{Kind: KeyName} }

// AttendanceKey sorts by one status count.
func AttendanceKey(status models.AttendanceStatus) Key {
	return Key{Kind: KeyAttendance, Status: status}
}

// AssignmentKey sorts by the score in the index-th column of a type.
func AssignmentKey(assignmentType models.AssignmentType, index int) Key {
	return Key{Kind: KeyAssignment, Type: assignmentType, Index: index}
}

// FinalScoreKey sorts by weighted final score.
func FinalScoreKey() Key { return Key{Kind: KeyFinalScore} }

func (k Key) String() string {
	switch k.Kind {
	case KeyAttendance:
		return fmt.Sprintf("attendance:%s", k.Status)
	case KeyAssignment:
		return fmt.Sprintf("assignment:%s:%d", k.Type, k.Index)
	default:
		return string(k.Kind)
	}
}

// ParseKey reads keys of the form name, finalScore, attendance:<status>,
// <status> or assignment:<type>:<index>.
func ParseKey(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	switch {
	case raw == string(KeyName):
		return NameKey(), nil
	case raw == string(KeyFinalScore):
		return FinalScoreKey(), nil
	case len(parts) == 1 && models.AttendanceStatus(raw).Valid():
		return AttendanceKey(models.AttendanceStatus(raw)), nil
	case len(parts) == 2 && parts[0] == string(KeyAttendance):
		status := models.AttendanceStatus(parts[1])
		if !status.Valid() {
			return Key{}, validationError("unknown attendance status %q in sort key", parts[1])
		}
		return AttendanceKey(status), nil
	case len(parts) == 3 && parts[0] == string(KeyAssignment):
		assignmentType := models.AssignmentType(parts[1])
		if !assignmentType.Valid() {
			return Key{}, validationError("unknown assignment type %q in sort key", parts[1])
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil || index < 0 {
			return Key{}, validationError("invalid assignment column %q in sort key", parts[2])
		}
		return AssignmentKey(assignmentType, index), nil
	default:
		return Key{}, validationError("unsupported sort key %q", raw)
	}
}

// ParseDirection defaults to ascending for an empty value.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	default:
		return "", validationError("unsupported sort order %q", raw)
	}
}

// SortState tracks the single active sort column of a table view.
type SortState struct {
	Key       Key
	Direction Direction
	active    bool
}

// Activate makes key the only active key. Activating the current key again
// flips its direction; any other key starts ascending.
func (s *SortState) Activate(key Key) {
	if s.active && s.Key == key {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return
	}
	s.Key = key
	s.Direction = Ascending
	s.active = true
}

// Set activates key with an explicit direction.
func (s *SortState) Set(key Key, direction Direction) {
	s.Key = key
	s.Direction = direction
	s.active = true
}

// Active returns the active key, if any.
func (s SortState) Active() (Key, bool) {
	return s.Key, s.active
}

// Apply sorts the table by the active key. Without an active key the table is untouched.
func (s SortState) Apply(table Table, sorter *Sorter) {
	if !s.active {
		return
	}
	sorter.SortRows(table, s.Key, s.Direction)
}

// Table is a list of summary rows the sorter can order in place.
type Table interface {
	Len() int
	Swap(i, j int)
	Name(i int) string
	// Value returns false when the row has no value for key.
	Value(i int, key Key) (float64, bool)
}

// Sorter orders tables using locale-aware, case-insensitive name comparison.
type Sorter struct {
	tag language.Tag
}

// NewSorter builds a sorter for a BCP 47 locale; unknown locales fall back to the root collation.
func NewSorter(locale string) *Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &Sorter{tag: tag}
}

// SortRows stably orders table by key. Missing numeric values rank below any
// real value and equal rows keep their previous relative order.
func (s *Sorter) SortRows(table Table, key Key, direction Direction) {
	var compare func(i, j int) int
	if key.Kind == KeyName {
		collator := collate.New(s.tag, collate.IgnoreCase)
		compare = func(i, j int) int { return collator.CompareString(table.Name(i), table.Name(j)) }
	} else {
		compare = func(i, j int) int {
			a, b := numericValue(table, i, key), numericValue(table, j, key)
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}
	}

	sort.Stable(&tableSorter{table: table, less: func(i, j int) bool {
		if direction == Descending {
			return compare(j, i) < 0
		}
		return compare(i, j) < 0
	}})
}

func numericValue(table Table, i int, key Key) float64 {
	value, ok := table.Value(i, key)
	if !ok || math.IsNaN(value) {
		return math.Inf(-1)
	}
	return value
}

type tableSorter struct {
	table Table
	less  func(i, j int) bool
}

func (t *tableSorter) Len() int           { return t.table.Len() }
func (t *tableSorter) Swap(i, j int)      { t.table.Swap(i, j) }
func (t *tableSorter) Less(i, j int) bool { return t.less(i, j) }

// AttendanceRows adapts attendance summaries of one subject to Table.
type AttendanceRows []models.AttendanceSummary

func (r AttendanceRows) Len() int          { return len(r) }
func (r AttendanceRows) Swap(i, j int)     { r[i], r[j] = r[j], r[i] }
func (r AttendanceRows) Name(i int) string { return r[i].Name }

func (r AttendanceRows) Value(i int, key Key) (float64, bool) {
	if key.Kind != KeyAttendance {
		return 0, false
	}
	return float64(r[i].Counts[key.Status]), true
}

// GradeRows adapts one grade table, with optional final scores keyed by student, to Table.
type GradeRows struct {
	Type   models.AssignmentType
	Rows   []models.GradeRow
	Finals map[string]float64
}

func (r GradeRows) Len() int          { return len(r.Rows) }
func (r GradeRows) Swap(i, j int)     { r.Rows[i], r.Rows[j] = r.Rows[j], r.Rows[i] }
func (r GradeRows) Name(i int) string { return r.Rows[i].Name }

func (r GradeRows) Value(i int, key Key) (float64, bool) {
	switch key.Kind {
	case KeyAssignment:
		cells := r.Rows[i].Cells
		if key.Type != r.Type || key.Index >= len(cells) || cells[key.Index].Score == nil {
			return 0, false
		}
		return *cells[key.Index].Score, true
	case KeyFinalScore:
		score, ok := r.Finals[r.Rows[i].StudentID]
		return score, ok
	default:
		return 0, false
	}
}

// FinalScoreRows adapts final scores of one subject to Table.
type FinalScoreRows []models.FinalScore

func (r FinalScoreRows) Len() int          { return len(r) }
func (r FinalScoreRows) Swap(i, j int)     { r[i], r[j] = r[j], r[i] }
func (r FinalScoreRows) Name(i int) string { return r[i].Name }

func (r FinalScoreRows) Value(i int, key Key) (float64, bool) {
	if key.Kind != KeyFinalScore {
		return 0, false
	}
	return r[i].Score, true
}
