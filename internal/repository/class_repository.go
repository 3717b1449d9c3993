package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbook-api/internal/models"
)

// ClassRepository reads classes and their instructors.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, homeroom, owner_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// HasInstructor reports whether the user owns the class or was invited as an instructor.
func (r *ClassRepository) HasInstructor(ctx context.Context, classID, userID string) (bool, error) {
	const query = `SELECT 1 FROM classes c
WHERE c.id = $1 AND (c.owner_id = $2 OR EXISTS (SELECT 1 FROM class_instructors ci WHERE ci.class_id = c.id AND ci.user_id = $2))
LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check class instructor: %w", err)
	}
	return true, nil
}
