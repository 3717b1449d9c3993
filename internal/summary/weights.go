package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
)

// WeightTolerance is the allowed drift from a total of 100.
const WeightTolerance = 0.001

// ValidateWeights checks a weight table. Weights must belong to known
// assignment types and be non-negative; requireTotal additionally demands a
// sum of 100 within WeightTolerance.
func ValidateWeights(weights models.WeightMap, requireTotal bool) error {
	if len(weights) == 0 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "weights required")
	}

	unknown := make([]string, 0)
	for assignmentType, weight := range weights {
		if !assignmentType.Valid() {
			unknown = append(unknown, string(assignmentType))
			continue
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weight for %s must be a non-negative number", assignmentType))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("unknown assignment types: %s", strings.Join(unknown, ", ")))
	}

	if requireTotal {
		if total := weights.Total(); math.Abs(total-100) > WeightTolerance {
			return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weights must total 100, got %.2f", total))
		}
	}
	return nil
}

// IndexWeights keys weight tables by subject. The last table wins on duplicates.
func IndexWeights(tables []models.AssignmentWeight) map[string]models.WeightMap {
	index := make(map[string]models.WeightMap, len(tables))
	for _, table := range tables {
		index[table.Subject] = table.Weights
	}
	return index
}
