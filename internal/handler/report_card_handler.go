package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/service"
	"github.com/noah-isme/sis-records-api/pkg/response"
)

type reportCardService interface {
	SF9(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*service.RenderedForm, error)
	SF10(ctx context.Context, studentID string) (*service.RenderedForm, error)
}

// ReportCardHandler streams SF9 and SF10 forms.
type ReportCardHandler struct {
	cards reportCardService
}

// NewReportCardHandler constructs ReportCardHandler.
func NewReportCardHandler(cards reportCardService) *ReportCardHandler {
	return &ReportCardHandler{cards: cards}
}

// SF9 godoc
// @Summary Download the SF9 progress report of an enrollment
// @Tags Report Cards
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Success 200 {file} file
// @Router /enrollments/{id}/sf9 [get]
func (h *ReportCardHandler) SF9(c *gin.Context) {
	form, err := h.cards.SF9(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	pdfAttachment(c, form.Filename, form.Content)
}

// SF10 godoc
// @Summary Download the SF10 permanent record of a student
// @Tags Report Cards
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Success 200 {file} file
// @Router /students/{id}/sf10 [get]
func (h *ReportCardHandler) SF10(c *gin.Context) {
	form, err := h.cards.SF10(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	pdfAttachment(c, form.Filename, form.Content)
}
