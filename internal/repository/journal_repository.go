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

// JournalRepository reads attendance journals stored as JSONB documents.
type JournalRepository struct {
	db *sqlx.DB
}

// NewJournalRepository constructs a JournalRepository.
func NewJournalRepository(db *sqlx.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

type journalRow struct {
	ID        string         `db:"id"`
	ClassID   string         `db:"class_id"`
	Subject   string         `db:"subject"`
	Date      time.Time      `db:"date"`
	Entries   types.JSONText `db:"entries"`
	CreatedAt time.Time      `db:"created_at"`
}

func (row journalRow) toModel() (models.JournalRecord, error) {
	record := models.JournalRecord{
		ID:        row.ID,
		ClassID:   row.ClassID,
		Subject:   row.Subject,
		Date:      row.Date,
		CreatedAt: row.CreatedAt,
		Entries:   []models.JournalEntry{},
	}
	if emptyDocument(row.Entries) {
		return record, nil
	}
	if err := row.Entries.Unmarshal(&record.Entries); err != nil {
		return models.JournalRecord{}, fmt.Errorf("decode journal %s entries: %w", row.ID, err)
	}
	return record, nil
}

// emptyDocument reports whether a JSONB column holds no list payload.
func emptyDocument(raw types.JSONText) bool {
	switch string(raw) {
	case "", "{}", "null":
		return true
	default:
		return false
	}
}

// ListJournals returns a class's journals matching the subject and date filter.
func (r *JournalRepository) ListJournals(ctx context.Context, classID string, filter models.JournalFilter) ([]models.JournalRecord, error) {
	conditions := []string{"class_id = $1"}
	args := []interface{}{classID}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	query := fmt.Sprintf(`SELECT id, class_id, subject, date, entries, created_at FROM journals WHERE %s ORDER BY date ASC, id ASC`, strings.Join(conditions, " AND "))
	var rows []journalRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}

	journals := make([]models.JournalRecord, 0, len(rows))
	for _, row := range rows {
		journal, err := row.toModel()
		if err != nil {
			return nil, err
		}
		journals = append(journals, journal)
	}
	return journals, nil
}
