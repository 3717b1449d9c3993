package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/classbook-api/internal/models"
)

// AssignmentRepository reads gradable assignments stored as JSONB documents.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

type assignmentRow struct {
	ID        string                `db:"id"`
	ClassID   string                `db:"class_id"`
	Subject   string                `db:"subject"`
	Type      models.AssignmentType `db:"type"`
	Title     string                `db:"title"`
	Sequence  int64                 `db:"sequence"`
	Grades    types.JSONText        `db:"grades"`
	CreatedAt time.Time             `db:"created_at"`
}

func (row assignmentRow) toModel() (models.AssignmentRecord, error) {
	record := models.AssignmentRecord{
		ID:        row.ID,
		ClassID:   row.ClassID,
		Subject:   row.Subject,
		Type:      row.Type,
		Title:     row.Title,
		Sequence:  row.Sequence,
		CreatedAt: row.CreatedAt,
		Grades:    []models.GradeEntry{},
	}
	if emptyDocument(row.Grades) {
		return record, nil
	}
	if err := row.Grades.Unmarshal(&record.Grades); err != nil {
		return models.AssignmentRecord{}, fmt.Errorf("decode assignment %s grades: %w", row.ID, err)
	}
	return record, nil
}

// ListAssignments returns a class's assignments matching the subject and type filter.
func (r *AssignmentRepository) ListAssignments(ctx context.Context, classID string, filter models.AssignmentFilter) ([]models.AssignmentRecord, error) {
	conditions := []string{"class_id = $1"}
	args := []interface{}{classID}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	query := fmt.Sprintf(`SELECT id, class_id, subject, type, title, sequence, grades, created_at FROM assignments WHERE %s ORDER BY subject ASC, sequence ASC, created_at ASC, id ASC`, strings.Join(conditions, " AND "))
	var rows []assignmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	assignments := make([]models.AssignmentRecord, 0, len(rows))
	for _, row := range rows {
		assignment, err := row.toModel()
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}
