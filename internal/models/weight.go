package models

import "time"

// WeightMap maps assignment types to their percentage contribution.
type WeightMap map[AssignmentType]float64

// Total returns the sum of the weights of every known assignment type.
func (w WeightMap) Total() float64 {
	total := 0.0
	for _, assignmentType := range AssignmentTypes {
		total += w[assignmentType]
	}
	return total
}

// AssignmentWeight is the weight table for one class and subject.
type AssignmentWeight struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Subject   string    `db:"subject" json:"subject"`
	Weights   WeightMap `db:"-" json:"weights"`
	UpdatedBy *string   `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
