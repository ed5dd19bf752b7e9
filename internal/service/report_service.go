package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
	"github.com/noah-isme/sis-records-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	FindPendingForSection(ctx context.Context, reportType models.ReportType, params models.ReportJobParams) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListByStatus(ctx context.Context, status models.ReportStatus, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

const (
	recoverBatch = 50
	cleanupBatch = 100
)

// ReportService accepts section report requests and serves their results.
type ReportService struct {
	repo      reportJobStore
	sections  sectionFinder
	queue     jobDispatcher
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ReportDownload is an opened export ready to stream. The caller closes File.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, sections sectionFinder, queue jobDispatcher, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		repo:      repo,
		sections:  sections,
		queue:     queue,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob queues a section report. A queued or running job for the same section, type and
// format is returned instead of creating a duplicate.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actor *models.JWTClaims) (*dto.ReportJobResponse, error) {
	params, err := s.authorizeSection(ctx, &req, actor)
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.FindPendingForSection(ctx, req.Type, params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending reports")
	}
	if pending != nil {
		return jobResponse(pending), nil
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    params,
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		msg := "failed to enqueue job"
		if updateErr := finishJob(ctx, s.repo, job.ID, models.ReportStatusFailed, nil, &msg); updateErr != nil {
			s.logger.Warn("failed to mark unqueued job", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(params.Format)),
		zap.String("section_id", params.SectionID),
	)
	return jobResponse(job), nil
}

// GetStatus returns job progress. Non-admins only see jobs they requested.
func (s *ReportService) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ReportStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && job.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ReportStatusResponse{
		ID:        job.ID,
		Type:      job.Type,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload checks a signed token against its job and opens the export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || path.Base(*job.ResultURL) != token {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs requeues jobs a previous process left behind. Interrupted jobs go first
// so they finish before newer requests.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	requeued := 0
	for _, status := range []models.ReportStatus{models.ReportStatusProcessing, models.ReportStatusQueued} {
		pending, err := s.repo.ListByStatus(ctx, status, recoverBatch)
		if err != nil {
			s.logger.Warn("failed to list report jobs for recovery", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		for _, job := range pending {
			if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
				s.logger.Warn("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			requeued++
		}
	}
	if requeued > 0 {
		s.logger.Info("report jobs recovered", zap.Int("count", requeued))
	}
}

// StartCleanup purges expired exports every CleanupInterval until ctx is cancelled.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purgeExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) purgeExpired(ctx context.Context) {
	expired, err := s.repo.ListFinishedBefore(ctx, time.Now().Add(-s.cfg.ResultTTL), cleanupBatch)
	if err != nil {
		s.logger.Warn("failed to list expired report jobs", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.ResultURL == nil {
			continue
		}
		_, relPath, _, err := s.exporter.ParseToken(path.Base(*job.ResultURL), true)
		if err != nil {
			continue
		}
		if err := s.exporter.Delete(relPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to delete expired export", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if removed, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export directory cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
}

// authorizeSection validates the request and returns the job parameters. Section reports
// belong to the section adviser; administrators may request any section.
func (s *ReportService) authorizeSection(ctx context.Context, req *dto.ReportRequest, actor *models.JWTClaims) (models.ReportJobParams, error) {
	if actor == nil {
		return models.ReportJobParams{}, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return models.ReportJobParams{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	params := models.ReportJobParams{SectionID: req.SectionID, Format: req.Format}
	if params.Format == "" {
		params.Format = models.ReportFormatPDF
	}
	if !req.Type.Supports(params.Format) {
		return params, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not available as %s", req.Type, params.Format))
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return params, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return params, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if actor.IsAdmin() || (actor.Role == models.RoleAdviser && section.AdviserID == actor.UserID) {
		return params, nil
	}
	return params, appErrors.Clone(appErrors.ErrForbidden, "only the section adviser or an administrator may request section reports")
}

func (s *ReportService) loadJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

func jobResponse(job *models.ReportJob) *dto.ReportJobResponse {
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}
}
