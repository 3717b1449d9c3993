package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/middleware"
	"github.com/noah-isme/classbook-api/internal/models"
	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/response"
)

type weightService interface {
	List(ctx context.Context, classID string) ([]models.AssignmentWeight, bool, error)
	Get(ctx context.Context, classID, subject string) (*models.AssignmentWeight, error)
	Upsert(ctx context.Context, req dto.UpsertWeightsRequest, actorID string) (*models.AssignmentWeight, error)
}

// WeightHandler manages per-subject assignment weights.
type WeightHandler struct {
	service weightService
}

// NewWeightHandler constructs the handler.
func NewWeightHandler(service weightService) *WeightHandler {
	return &WeightHandler{service: service}
}

// List godoc
// @Summary List assignment weights of a class
// @Tags Weights
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/weights [get]
func (h *WeightHandler) List(c *gin.Context) {
	weights, cacheHit, err := h.service.List(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetMeta(c, "cache_hit", cacheHit)
	response.JSON(c, http.StatusOK, weights)
}

// Get godoc
// @Summary Get assignment weights of a subject
// @Tags Weights
// @Produce json
// @Param classId path string true "Class ID"
// @Param subject path string true "Subject"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{classId}/weights/{subject} [get]
func (h *WeightHandler) Get(c *gin.Context) {
	weight, err := h.service.Get(c.Request.Context(), c.Param("classId"), c.Param("subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weight)
}

// Upsert godoc
// @Summary Replace assignment weights of a subject
// @Tags Weights
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param subject path string true "Subject"
// @Param payload body dto.UpsertWeightsRequest true "Weights keyed by assignment type, summing to 100"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{classId}/weights/{subject} [put]
func (h *WeightHandler) Upsert(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertWeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	req.ClassID = c.Param("classId")
	req.Subject = c.Param("subject")

	weight, err := h.service.Upsert(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weight)
}
