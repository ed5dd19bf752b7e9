package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
	"github.com/noah-isme/sis-records-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *reportRepoStub) FindPendingForSection(ctx context.Context, reportType models.ReportType, params models.ReportJobParams) (*models.ReportJob, error) {
	for _, job := range r.jobs {
		if job.Type != reportType || job.Params.SectionID != params.SectionID || job.Params.Format != params.Format {
			continue
		}
		if job.Status == models.ReportStatusQueued || job.Status == models.ReportStatusProcessing {
			return job, nil
		}
	}
	return nil, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListByStatus(ctx context.Context, status models.ReportStatus, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range r.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func adviserActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "adviser-1", Role: models.RoleAdviser}
}

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t, gradeSheetSource())
	sections := &fakeSectionReader{sections: map[string]models.Section{
		"sec-1": {ID: "sec-1", Name: "Rizal", GradeLevel: 8, SchoolYear: "2024-2025", AdviserID: "adviser-1"},
	}}
	service := NewReportService(repo, sections, queue, exportSvc, nil, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return service, repo, queue, exportSvc
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:      models.ReportTypeGradeSheet,
		SectionID: "sec-1",
		Format:    models.ReportFormatCSV,
	}, adviserActor())
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Contains(t, repo.jobs, resp.ID)
	assert.Equal(t, "adviser-1", repo.jobs[resp.ID].CreatedBy)
}

func TestReportServiceCreateJobReusesPendingJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	req := dto.ReportRequest{Type: models.ReportTypeSF9, SectionID: "sec-1"}

	first, err := svc.CreateJob(context.Background(), req, adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, repo.jobs[first.ID].Params.Format)

	second, err := svc.CreateJob(context.Background(), req, adminActor())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, queue.jobs, 1)
	assert.Len(t, repo.jobs, 1)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeSF9, SectionID: "sec-1", Format: models.ReportFormatCSV}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: "attendance", SectionID: "sec-1"}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeSF9, SectionID: "missing"}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	other := &models.JWTClaims{UserID: "adviser-2", Role: models.RoleAdviser}
	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeSF9, SectionID: "sec-1"}, other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	queue.err = jobs.ErrQueueFull

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeSF9, SectionID: "sec-1"}, adminActor())
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeGradeSheet,
		Params:    models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "adviser-1",
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, adviserActor())
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, models.ReportTypeGradeSheet, resp.Type)

	_, err = svc.GetStatus(context.Background(), job.ID, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.GetStatus(context.Background(), "missing", adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-download",
		Type:      models.ReportTypeGradeSheet,
		Params:    models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusProcessing,
		CreatedBy: "admin",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	require.Error(t, err)

	job.Status = models.ReportStatusFinished
	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	download.File.Close()

	_, err = svc.ResolveDownload(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	repo.jobs["queued"] = &models.ReportJob{ID: "queued", Type: models.ReportTypeSF9, Status: models.ReportStatusQueued}
	repo.jobs["running"] = &models.ReportJob{ID: "running", Type: models.ReportTypeSF9, Status: models.ReportStatusProcessing}
	repo.jobs["done"] = &models.ReportJob{ID: "done", Type: models.ReportTypeSF9, Status: models.ReportStatusFinished}

	svc.RecoverPendingJobs(context.Background())

	require.Len(t, queue.jobs, 2)
	assert.Equal(t, "running", queue.jobs[0].ID)
	assert.Equal(t, "queued", queue.jobs[1].ID)
}
