package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type promotionCommitter interface {
	CommitPromotion(ctx context.Context, commit repository.PromotionCommit) error
}

// PromotionService decides and commits the end-of-year standing of an enrollment.
type PromotionService struct {
	enrollments enrollmentDetailReader
	grades      subjectGradeLister
	finals      promotionCommitter
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(enrollments enrollmentDetailReader, grades subjectGradeLister, finals promotionCommitter, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *PromotionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{
		enrollments: enrollments,
		grades:      grades,
		finals:      finals,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Preview computes the promotion decision from the current grades without persisting anything.
func (s *PromotionService) Preview(ctx context.Context, enrollmentID string) (*dto.PromotionPreview, error) {
	detail, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
	if err != nil {
		return nil, err
	}
	grades, err := s.grades.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}
	preview, err := decidePromotion(detail, grades)
	if err != nil {
		return nil, err
	}
	return preview, nil
}

// Commit finalises the school year: one final grade per subject, the enrollment status and
// the student status are written in a single transaction.
func (s *PromotionService) Commit(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*dto.PromotionResult, error) {
	detail, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := requireAdviserOrAdmin(actor, detail); err != nil {
		return nil, err
	}
	if detail.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment was dropped")
	}

	grades, err := s.grades.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}
	preview, err := decidePromotion(detail, grades)
	if err != nil {
		return nil, err
	}
	next := models.EnrollmentStatus(preview.NextStatus)
	// A committed enrollment may only be committed again with the same outcome.
	if detail.Status != models.EnrollmentStatusEnrolled && detail.Status != next {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "promotion already committed")
	}

	var missing []string
	finals := make([]models.FinalGrade, 0, len(preview.Subjects))
	for _, subject := range preview.Subjects {
		if subject.Average == nil {
			missing = append(missing, subject.SubjectName)
			continue
		}
		finals = append(finals, models.FinalGrade{
			EnrollmentID:   detail.ID,
			SubjectGradeID: subject.SubjectGradeID,
			SubjectID:      subject.SubjectID,
			GeneralAverage: *subject.Average,
			ForRemedial:    subject.ForRemedial,
		})
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "subjects without grades: "+strings.Join(missing, ", "))
	}

	commit := repository.PromotionCommit{
		EnrollmentID:     detail.ID,
		StudentID:        detail.StudentID,
		EnrollmentStatus: next,
		StudentStatus:    next,
		FinalGrades:      finals,
	}
	if err := s.finals.CommitPromotion(ctx, commit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit promotion")
	}
	s.cache.InvalidateSummary(ctx, detail.ID)
	s.metrics.RecordPromotion(preview.Outcome)
	s.logger.Info("promotion committed",
		zap.String("enrollment_id", detail.ID),
		zap.String("student_id", detail.StudentID),
		zap.String("outcome", string(preview.Outcome)),
		zap.String("status", preview.NextStatus),
		zap.Int("failed", preview.FailedCount),
		zap.String("actor", actor.UserID),
	)
	return &dto.PromotionResult{PromotionPreview: *preview, CommittedBy: actor.UserID, CommittedAt: s.now().UTC()}, nil
}

// decidePromotion applies the promotion table to the enrollment's grades. Junior high
// treats a complete MAPEH group as a single learning area for both the general average
// and the failed-subject count, while each component keeps its own remedial flag.
func decidePromotion(detail *models.EnrollmentDetail, grades []models.SubjectGrade) (*dto.PromotionPreview, error) {
	seniorHigh := detail.IsSeniorHigh()
	records := make([]grading.SubjectRecord, len(grades))
	preview := &dto.PromotionPreview{
		EnrollmentID: detail.ID,
		SeniorHigh:   seniorHigh,
		Subjects:     make([]dto.PromotionSubject, 0, len(grades)),
	}
	for i := range grades {
		records[i] = grades[i].Record()
		avg := records[i].Average()
		forRemedial := avg != nil && grading.ForRemedial(*avg)
		preview.Subjects = append(preview.Subjects, dto.PromotionSubject{
			SubjectGradeID: grades[i].ID,
			SubjectID:      grades[i].SubjectID,
			SubjectName:    grades[i].SubjectName,
			Average:        avg,
			ForRemedial:    forRemedial,
		})
	}
	counted := records
	if !seniorHigh {
		counted = grading.FoldMAPEH(records)
	}
	preview.FailedCount = grading.CountFailed(counted)
	preview.GeneralAverage = grading.GeneralAverage(counted)

	outcome, err := grading.DecidePromotion(preview.FailedCount, seniorHigh, preview.GeneralAverage)
	if err != nil {
		if errors.Is(err, grading.ErrNoGeneralAverage) {
			return nil, appErrors.ErrNoGeneralAverage
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide promotion")
	}
	preview.Outcome = outcome
	preview.NextStatus = string(statusForOutcome(outcome, detail.GradeLevel))
	return preview, nil
}

// statusForOutcome maps a decision to the learner's next standing. Promotion out of the
// final grade level is graduation.
func statusForOutcome(outcome grading.Outcome, gradeLevel int) models.EnrollmentStatus {
	switch outcome {
	case grading.Promoted:
		if gradeLevel >= models.FinalGradeLevel {
			return models.EnrollmentStatusGraduated
		}
		return models.EnrollmentStatusPromoted
	case grading.ConditionallyPromoted:
		return models.EnrollmentStatusConditionallyPromoted
	default:
		return models.EnrollmentStatusRetained
	}
}
