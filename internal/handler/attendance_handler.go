package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/pkg/response"
)

type attendanceService interface {
	Summary(ctx context.Context, enrollmentID string) (*dto.AttendanceSummary, error)
	Upsert(ctx context.Context, enrollmentID string, req dto.UpsertAttendanceRequest, actor *models.JWTClaims) (*dto.AttendanceSummary, error)
}

// AttendanceHandler exposes the monthly attendance printed on SF9.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Get godoc
// @Summary Monthly attendance of an enrollment
// @Tags Attendance
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	summary, err := h.attendance.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Upsert godoc
// @Summary Record monthly attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpsertAttendanceRequest true "Months"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [put]
func (h *AttendanceHandler) Upsert(c *gin.Context) {
	var req dto.UpsertAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := h.attendance.Upsert(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
