package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/service"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type reportServiceMock struct {
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
	lastRequest dto.ReportRequest
	lastActor   *models.JWTClaims
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.ReportRequest, actor *models.JWTClaims) (*dto.ReportJobResponse, error) {
	m.lastRequest, m.lastActor = req, actor
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ReportStatusResponse, error) {
	m.lastActor = actor
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func TestReportHandlerGenerateReport(t *testing.T) {
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.ReportRequest{Type: models.ReportTypeGradeSheet, SectionID: "sec-1", Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/reports/generate", payload)
	actor := asAdviser(c)

	handler.GenerateReport(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "sec-1", mockSvc.lastRequest.SectionID)
	assert.Same(t, actor, mockSvc.lastActor)
}

func TestReportHandlerGenerateReportValidation(t *testing.T) {
	mockSvc := &reportServiceMock{createErr: appErrors.Clone(appErrors.ErrValidation, "sf9 reports are only available as pdf")}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodPost, "/reports/generate", []byte(`{"type":"sf9","sectionId":"sec-1","format":"csv"}`))
	asAdviser(c)

	handler.GenerateReport(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerReportStatus(t *testing.T) {
	url := "/api/v1/export/token"
	mockSvc := &reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job-1", Type: models.ReportTypeSF9, Status: models.ReportStatusFinished, Progress: 100, ResultURL: &url},
	}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/reports/status/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	asAdmin(c)

	handler.ReportStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.ReportStatusResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &status))
	assert.Equal(t, url, *status.ResultURL)
}

func TestReportHandlerDownloadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grade_sheet.csv")
	require.NoError(t, os.WriteFile(path, []byte("Learner,LRN\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &reportServiceMock{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "grade_sheet.csv",
			Format:    models.ReportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.DownloadReport(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "grade_sheet.csv")
	assert.Equal(t, "Learner,LRN\n", w.Body.String())
}

func TestReportHandlerDownloadExpired(t *testing.T) {
	mockSvc := &reportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.DownloadReport(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
