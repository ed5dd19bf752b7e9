package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/pkg/response"
)

type promotionService interface {
	Preview(ctx context.Context, enrollmentID string) (*dto.PromotionPreview, error)
	Commit(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*dto.PromotionResult, error)
}

type remedialService interface {
	List(ctx context.Context, enrollmentID string) ([]dto.FinalGradeView, error)
	Save(ctx context.Context, enrollmentID string, req dto.SaveRemedialsRequest, actor *models.JWTClaims) (*dto.SaveRemedialsResponse, error)
}

// PromotionHandler exposes end-of-year promotion and remedial endpoints.
type PromotionHandler struct {
	promotions promotionService
	remedials  remedialService
}

// NewPromotionHandler constructs PromotionHandler.
func NewPromotionHandler(promotions promotionService, remedials remedialService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions, remedials: remedials}
}

// Preview godoc
// @Summary Preview the promotion decision
// @Tags Promotion
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/promotion [get]
func (h *PromotionHandler) Preview(c *gin.Context) {
	preview, err := h.promotions.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Commit godoc
// @Summary Finalise the school year and commit the promotion decision
// @Tags Promotion
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/{id}/promotion [post]
func (h *PromotionHandler) Commit(c *gin.Context) {
	result, err := h.promotions.Commit(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListRemedials godoc
// @Summary List final grades with remedial results
// @Tags Promotion
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/remedials [get]
func (h *PromotionHandler) ListRemedials(c *gin.Context) {
	finals, err := h.remedials.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, finals, nil)
}

// SaveRemedials godoc
// @Summary Record remedial class marks
// @Tags Promotion
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.SaveRemedialsRequest true "Remedial marks and conduct dates"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/remedials [post]
func (h *PromotionHandler) SaveRemedials(c *gin.Context) {
	var req dto.SaveRemedialsRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.remedials.Save(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
