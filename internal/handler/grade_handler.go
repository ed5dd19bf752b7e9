package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/middleware"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
	"github.com/noah-isme/sis-records-api/pkg/response"
)

type gradeService interface {
	Summary(ctx context.Context, enrollmentID string) (*dto.GradeSummary, bool, error)
	GetRecord(ctx context.Context, recordID string) (*dto.SubjectGradeResponse, error)
	RecordQuarterGrade(ctx context.Context, recordID string, quarter int, req dto.RecordQuarterGradeRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error)
	RecordComponentScores(ctx context.Context, recordID string, quarter int, req dto.RecordComponentScoresRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error)
	AddIntervention(ctx context.Context, recordID string, req dto.AddInterventionRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error)
}

// GradeHandler exposes quarter grade recording and the grade summary.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Summary godoc
// @Summary Grade summary of an enrollment
// @Description Per-subject quarter grades, MAPEH composite, general average and, for senior high, semester grades.
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/summary [get]
func (h *GradeHandler) Summary(c *gin.Context) {
	summary, hit, err := h.grades.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// GetRecord godoc
// @Summary Get a subject grade record with intervention history
// @Tags Grades
// @Produce json
// @Param recordId path string true "Subject grade record ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{recordId} [get]
func (h *GradeHandler) GetRecord(c *gin.Context) {
	record, err := h.grades.GetRecord(c.Request.Context(), c.Param("recordId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// RecordQuarter godoc
// @Summary Set or clear a quarter grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param recordId path string true "Subject grade record ID"
// @Param quarter path int true "Quarter 1-4"
// @Param payload body dto.RecordQuarterGradeRequest true "Grade (null clears)"
// @Success 200 {object} response.Envelope
// @Router /grades/{recordId}/quarters/{quarter} [put]
func (h *GradeHandler) RecordQuarter(c *gin.Context) {
	quarter, ok := quarterParam(c)
	if !ok {
		return
	}
	var req dto.RecordQuarterGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.grades.RecordQuarterGrade(c.Request.Context(), c.Param("recordId"), quarter, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// RecordComponents godoc
// @Summary Compute a quarter grade from component scores
// @Tags Grades
// @Accept json
// @Produce json
// @Param recordId path string true "Subject grade record ID"
// @Param quarter path int true "Quarter 1-4"
// @Param payload body dto.RecordComponentScoresRequest true "Component percentage scores"
// @Success 200 {object} response.Envelope
// @Router /grades/{recordId}/quarters/{quarter}/components [put]
func (h *GradeHandler) RecordComponents(c *gin.Context) {
	quarter, ok := quarterParam(c)
	if !ok {
		return
	}
	var req dto.RecordComponentScoresRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.grades.RecordComponentScores(c.Request.Context(), c.Param("recordId"), quarter, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// AddIntervention godoc
// @Summary Append an intervention to a quarter
// @Tags Grades
// @Accept json
// @Produce json
// @Param recordId path string true "Subject grade record ID"
// @Param payload body dto.AddInterventionRequest true "Intervention"
// @Success 201 {object} response.Envelope
// @Router /grades/{recordId}/interventions [post]
func (h *GradeHandler) AddIntervention(c *gin.Context) {
	var req dto.AddInterventionRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.grades.AddIntervention(c.Request.Context(), c.Param("recordId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

func quarterParam(c *gin.Context) (int, bool) {
	quarter, err := strconv.Atoi(c.Param("quarter"))
	if err != nil || quarter < 1 || quarter > 4 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "quarter must be between 1 and 4"))
		return 0, false
	}
	return quarter, true
}
