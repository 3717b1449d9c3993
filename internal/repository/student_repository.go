package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbook-api/internal/models"
)

// StudentRepository reads class rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const profileSelect = `SELECT s.id, s.full_name, s.class_id, c.name AS class_name, c.homeroom
FROM students s
JOIN classes c ON c.id = s.class_id`

// GetRoster returns the active students of a class in roster order.
func (r *StudentRepository) GetRoster(ctx context.Context, classID string) ([]models.StudentProfile, error) {
	query := profileSelect + ` WHERE s.class_id = $1 AND s.active = true ORDER BY s.roster_number ASC, s.id ASC`
	var roster []models.StudentProfile
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}
	return roster, nil
}

// FindProfile returns a single student profile by ID.
func (r *StudentRepository) FindProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	query := profileSelect + ` WHERE s.id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, studentID); err != nil {
		return nil, err
	}
	return &profile, nil
}
