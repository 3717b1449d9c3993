package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/classbook-api/internal/models"
)

// WeightRepository persists per-subject assignment weight tables.
type WeightRepository struct {
	db *sqlx.DB
}

// NewWeightRepository constructs a WeightRepository.
func NewWeightRepository(db *sqlx.DB) *WeightRepository {
	return &WeightRepository{db: db}
}

type weightRow struct {
	ID        string         `db:"id"`
	ClassID   string         `db:"class_id"`
	Subject   string         `db:"subject"`
	Weights   types.JSONText `db:"weights"`
	UpdatedBy *string        `db:"updated_by"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row weightRow) toModel() (models.AssignmentWeight, error) {
	weight := models.AssignmentWeight{
		ID:        row.ID,
		ClassID:   row.ClassID,
		Subject:   row.Subject,
		UpdatedBy: row.UpdatedBy,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Weights:   models.WeightMap{},
	}
	if emptyDocument(row.Weights) {
		return weight, nil
	}
	if err := row.Weights.Unmarshal(&weight.Weights); err != nil {
		return models.AssignmentWeight{}, fmt.Errorf("decode weights for %s/%s: %w", row.ClassID, row.Subject, err)
	}
	return weight, nil
}

const weightColumns = `id, class_id, subject, weights, updated_by, created_at, updated_at`

// GetWeights returns the weight table for a class subject or sql.ErrNoRows.
func (r *WeightRepository) GetWeights(ctx context.Context, classID, subject string) (*models.AssignmentWeight, error) {
	query := `SELECT ` + weightColumns + ` FROM assignment_weights WHERE class_id = $1 AND subject = $2`
	var row weightRow
	if err := r.db.GetContext(ctx, &row, query, classID, subject); err != nil {
		return nil, err
	}
	weight, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &weight, nil
}

// ListWeights returns every weight table configured for a class.
func (r *WeightRepository) ListWeights(ctx context.Context, classID string) ([]models.AssignmentWeight, error) {
	query := `SELECT ` + weightColumns + ` FROM assignment_weights WHERE class_id = $1 ORDER BY subject ASC`
	var rows []weightRow
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	weights := make([]models.AssignmentWeight, 0, len(rows))
	for _, row := range rows {
		weight, err := row.toModel()
		if err != nil {
			return nil, err
		}
		weights = append(weights, weight)
	}
	return weights, nil
}

// Upsert stores the weight table, replacing any previous table for the class subject.
func (r *WeightRepository) Upsert(ctx context.Context, weight *models.AssignmentWeight) error {
	if weight == nil {
		return fmt.Errorf("weight payload is nil")
	}
	if weight.ID == "" {
		weight.ID = uuid.NewString()
	}
	payload, err := json.Marshal(weight.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	now := time.Now().UTC()
	if weight.CreatedAt.IsZero() {
		weight.CreatedAt = now
	}
	weight.UpdatedAt = now

	const query = `INSERT INTO assignment_weights (id, class_id, subject, weights, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (class_id, subject) DO UPDATE SET weights = EXCLUDED.weights, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, weight.ID, weight.ClassID, weight.Subject, types.JSONText(payload), weight.UpdatedBy, weight.CreatedAt, weight.UpdatedAt)
	if err := row.Scan(&weight.ID, &weight.CreatedAt); err != nil {
		return fmt.Errorf("upsert weights: %w", err)
	}
	return nil
}
