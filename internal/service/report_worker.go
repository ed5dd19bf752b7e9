package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
	"github.com/noah-isme/sis-records-api/pkg/jobs"
)

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportWorker renders queued report jobs. It is the jobs.Handler of the report queue.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle runs one attempt. A failed attempt puts the job back to QUEUED until the queue's
// last attempt, which marks it FAILED. Jobs already in a terminal state are skipped.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		return nil
	}
	if err := moveJob(ctx, w.repo, job.ID, models.ReportStatusProcessing, 10, nil); err != nil {
		return err
	}

	log := w.logger.With(zap.String("job_id", job.ID), zap.String("type", string(record.Type)), zap.Int("attempt", job.Attempt))
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt < w.maxRetries {
			if updateErr := moveJob(ctx, w.repo, job.ID, models.ReportStatusQueued, 0, &msg); updateErr != nil {
				log.Warn("failed to requeue report job", zap.Error(updateErr))
			}
			log.Warn("report attempt failed", zap.Error(err))
			return err
		}
		if updateErr := finishJob(ctx, w.repo, job.ID, models.ReportStatusFailed, nil, &msg); updateErr != nil {
			log.Warn("failed to mark report job failed", zap.Error(updateErr))
		}
		w.metrics.RecordReportJob(record.Type, models.ReportStatusFailed)
		log.Error("report job failed", zap.Error(err))
		return err
	}

	cleared := ""
	if err := finishJob(ctx, w.repo, job.ID, models.ReportStatusFinished, &result.URL, &cleared); err != nil {
		log.Warn("failed to mark report job finished", zap.Error(err))
		return err
	}
	w.metrics.RecordReportJob(record.Type, models.ReportStatusFinished)
	log.Info("report job finished")
	return nil
}

// moveJob records a non-terminal status change.
func moveJob(ctx context.Context, repo reportJobStore, id string, status models.ReportStatus, progress int, errMsg *string) error {
	return repo.Update(ctx, id, repository.UpdateReportJobParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: errMsg,
	})
}

// finishJob moves a job to a terminal status with full progress and a finish time.
func finishJob(ctx context.Context, repo reportJobStore, id string, status models.ReportStatus, resultURL, errMsg *string) error {
	progress := 100
	now := time.Now().UTC()
	return repo.Update(ctx, id, repository.UpdateReportJobParams{
		Status:       &status,
		Progress:     &progress,
		ResultURL:    resultURL,
		ErrorMessage: errMsg,
		FinishedAt:   &now,
	})
}
