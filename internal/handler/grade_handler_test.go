package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/middleware"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type gradeServiceMock struct {
	summary     *dto.GradeSummary
	summaryHit  bool
	record      *dto.SubjectGradeResponse
	err         error
	lastRecord  string
	lastQuarter int
	lastGrade   dto.RecordQuarterGradeRequest
	lastScores  dto.RecordComponentScoresRequest
	lastActor   *models.JWTClaims
	calls       int
}

func (m *gradeServiceMock) Summary(ctx context.Context, enrollmentID string) (*dto.GradeSummary, bool, error) {
	m.calls++
	return m.summary, m.summaryHit, m.err
}

func (m *gradeServiceMock) GetRecord(ctx context.Context, recordID string) (*dto.SubjectGradeResponse, error) {
	m.calls++
	m.lastRecord = recordID
	return m.record, m.err
}

func (m *gradeServiceMock) RecordQuarterGrade(ctx context.Context, recordID string, quarter int, req dto.RecordQuarterGradeRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error) {
	m.calls++
	m.lastRecord, m.lastQuarter, m.lastGrade, m.lastActor = recordID, quarter, req, actor
	return m.record, m.err
}

func (m *gradeServiceMock) RecordComponentScores(ctx context.Context, recordID string, quarter int, req dto.RecordComponentScoresRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error) {
	m.calls++
	m.lastRecord, m.lastQuarter, m.lastScores, m.lastActor = recordID, quarter, req, actor
	return m.record, m.err
}

func (m *gradeServiceMock) AddIntervention(ctx context.Context, recordID string, req dto.AddInterventionRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error) {
	m.calls++
	m.lastRecord, m.lastActor = recordID, actor
	return m.record, m.err
}

func TestGradeHandlerSummaryReportsCacheHit(t *testing.T) {
	passed := grading.Passed
	mockSvc := &gradeServiceMock{
		summary:    &dto.GradeSummary{EnrollmentID: "enr-1", GeneralAverage: floatPtr(78.33), Remark: &passed},
		summaryHit: true,
	}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/enrollments/enr-1/summary", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	middleware.WithResponseMeta()(c)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	var summary dto.GradeSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 78.33, *summary.GeneralAverage)
}

func TestGradeHandlerRecordQuarter(t *testing.T) {
	mockSvc := &gradeServiceMock{record: &dto.SubjectGradeResponse{RecordID: "rec-1"}}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/grades/rec-1/quarters/2", []byte(`{"grade":88.5}`))
	c.Params = gin.Params{{Key: "recordId", Value: "rec-1"}, {Key: "quarter", Value: "2"}}
	actor := asAdviser(c)
	handler.RecordQuarter(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rec-1", mockSvc.lastRecord)
	assert.Equal(t, 2, mockSvc.lastQuarter)
	require.NotNil(t, mockSvc.lastGrade.Grade)
	assert.Equal(t, 88.5, *mockSvc.lastGrade.Grade)
	assert.Same(t, actor, mockSvc.lastActor)
}

func TestGradeHandlerRecordQuarterClearsWithNull(t *testing.T) {
	mockSvc := &gradeServiceMock{record: &dto.SubjectGradeResponse{RecordID: "rec-1"}}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/grades/rec-1/quarters/4", []byte(`{"grade":null}`))
	c.Params = gin.Params{{Key: "recordId", Value: "rec-1"}, {Key: "quarter", Value: "4"}}
	asAdviser(c)
	handler.RecordQuarter(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mockSvc.lastGrade.Grade)
}

func TestGradeHandlerRejectsBadQuarter(t *testing.T) {
	for _, quarter := range []string{"0", "5", "first"} {
		mockSvc := &gradeServiceMock{}
		handler := NewGradeHandler(mockSvc)

		c, w := newGinContext(http.MethodPut, "/grades/rec-1/quarters/"+quarter, []byte(`{"grade":80}`))
		c.Params = gin.Params{{Key: "recordId", Value: "rec-1"}, {Key: "quarter", Value: quarter}}
		asAdviser(c)
		handler.RecordQuarter(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, quarter)
		assert.Zero(t, mockSvc.calls, quarter)
	}
}

func TestGradeHandlerRecordComponents(t *testing.T) {
	mockSvc := &gradeServiceMock{record: &dto.SubjectGradeResponse{RecordID: "rec-1"}}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/grades/rec-1/quarters/1/components", []byte(`{"scores":{"written_work":80,"performance_task":90,"quarterly_assessment":70}}`))
	c.Params = gin.Params{{Key: "recordId", Value: "rec-1"}, {Key: "quarter", Value: "1"}}
	asAdviser(c)
	handler.RecordComponents(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 90.0, mockSvc.lastScores.Scores["performance_task"])
}

func TestGradeHandlerAddInterventionMapsErrors(t *testing.T) {
	mockSvc := &gradeServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "only the section adviser may record grades")}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/grades/rec-1/interventions", []byte(`{"quarter":1,"grade":80,"used":["tutoring"]}`))
	c.Params = gin.Params{{Key: "recordId", Value: "rec-1"}}
	asAdviser(c)
	handler.AddIntervention(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, w).Error.Code)
}

func TestGradeHandlerAddInterventionCreated(t *testing.T) {
	mockSvc := &gradeServiceMock{record: &dto.SubjectGradeResponse{RecordID: "rec-1"}}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/grades/rec-1/interventions", []byte(`{"quarter":1,"grade":80,"used":["tutoring"]}`))
	c.Params = gin.Params{{Key: "recordId", Value: "rec-1"}}
	asAdviser(c)
	handler.AddIntervention(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestGradeHandlerInvalidBody(t *testing.T) {
	mockSvc := &gradeServiceMock{}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/grades/rec-1/interventions", []byte(`{"quarter":`))
	c.Params = gin.Params{{Key: "recordId", Value: "rec-1"}}
	asAdviser(c)
	handler.AddIntervention(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mockSvc.calls)
}
