package summary

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

func TestValidateWeights(t *testing.T) {
	valid := models.WeightMap{models.AssignmentTypeHomework: 33.3333, models.AssignmentTypeQuiz: 33.3333, models.AssignmentTypeExam: 33.3334}
	assert.NoError(t, ValidateWeights(valid, true))

	partial := models.WeightMap{models.AssignmentTypeHomework: 40}
	assert.NoError(t, ValidateWeights(partial, false))

	cases := []struct {
		name    string
		weights models.WeightMap
		total   bool
	}{
		{name: "empty", weights: models.WeightMap{}},
		{name: "negative", weights: models.WeightMap{models.AssignmentTypeExam: -5, models.AssignmentTypeQuiz: 105}},
		{name: "nan", weights: models.WeightMap{models.AssignmentTypeExam: math.NaN()}},
		{name: "unknown type", weights: models.WeightMap{"lab": 100}},
		{name: "total", weights: partial, total: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWeights(tc.weights, tc.total)
			assert.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidWeights))
		})
	}
}

func TestIndexWeights(t *testing.T) {
	index := IndexWeights([]models.AssignmentWeight{
		{Subject: "Math", Weights: models.WeightMap{models.AssignmentTypeExam: 100}},
		{Subject: "Art", Weights: models.WeightMap{models.AssignmentTypeProject: 100}},
	})
	assert.Len(t, index, 2)
	assert.Equal(t, 100.0, index["Art"][models.AssignmentTypeProject])
}
