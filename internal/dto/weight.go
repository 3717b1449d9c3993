package dto

import "github.com/noah-isme/classbook-api/internal/models"

// UpsertWeightsRequest is the PUT /classes/:classId/weights/:subject body.
type UpsertWeightsRequest struct {
	ClassID string           `json:"-" validate:"required"`
	Subject string           `json:"-" validate:"required,max=128"`
	Weights models.WeightMap `json:"weights" validate:"required,min=1,dive,keys,oneof=homework quiz exam project finalExam,endkeys,gte=0,lte=100"`
}
