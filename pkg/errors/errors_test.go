package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("load weights: %w", Clone(ErrInvalidWeights, "weights must sum to 100"))
	assert.True(t, Is(wrapped, ErrInvalidWeights))
	assert.False(t, Is(wrapped, ErrValidation))
	assert.False(t, Is(nil, ErrValidation))
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)

	typed := Clone(ErrNotFound, "student not found")
	assert.Same(t, typed, FromError(typed))
	assert.Nil(t, FromError(nil))
}

func TestCloneKeepsOriginal(t *testing.T) {
	clone := Clone(ErrForbidden, "not your class")
	assert.Equal(t, "not your class", clone.Message)
	assert.Equal(t, "forbidden", ErrForbidden.Message)
	assert.Equal(t, ErrForbidden, Clone(ErrForbidden, ""))
}

type reportQuery struct {
	ClassID string `validate:"required"`
	Format  string `validate:"oneof=csv pdf"`
	Note    string `validate:"max=5"`
}

func TestValidationListsFields(t *testing.T) {
	err := validator.New().Struct(reportQuery{Format: "xlsx", Note: "too long"})
	require.Error(t, err)

	appErr := Validation(err, "invalid report request")
	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, map[string]string{
		"ClassID": "is required",
		"Format":  "must be one of csv pdf",
		"Note":    "must be at most 5",
	}, appErr.Fields)

	plain := Validation(fmt.Errorf("bad date"), "invalid query")
	assert.Nil(t, plain.Fields)
	assert.True(t, Is(plain, ErrValidation))
}
