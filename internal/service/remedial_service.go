package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type remedialRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinalGrade, error)
	SaveRemedials(ctx context.Context, commit repository.RemedialCommit) error
}

// RemedialService records remedial class results against finalised subjects.
type RemedialService struct {
	enrollments enrollmentDetailReader
	finals      remedialRepository
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRemedialService constructs RemedialService.
func NewRemedialService(enrollments enrollmentDetailReader, finals remedialRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RemedialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemedialService{enrollments: enrollments, finals: finals, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns the final grades of an enrollment, including remedial results.
func (s *RemedialService) List(ctx context.Context, enrollmentID string) ([]dto.FinalGradeView, error) {
	if _, err := loadEnrollment(ctx, s.enrollments, enrollmentID); err != nil {
		return nil, err
	}
	finals, err := s.finals.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load final grades")
	}
	views := make([]dto.FinalGradeView, 0, len(finals))
	for i := range finals {
		views = append(views, *finalGradeView(&finals[i]))
	}
	return views, nil
}

// Save recomputes the final grade of every remedial mark and stores the batch atomically.
// Marks without a remedial grade leave their record untouched. When every remedial subject
// of a conditionally promoted learner is cleared, the learner is promoted.
func (s *RemedialService) Save(ctx context.Context, enrollmentID string, req dto.SaveRemedialsRequest, actor *models.JWTClaims) (*dto.SaveRemedialsResponse, error) {
	if req.ConductedFrom == nil || req.ConductedTo == nil {
		return nil, appErrors.ErrRemedialDatesRequired
	}
	if req.ConductedFrom.After(*req.ConductedTo) {
		return nil, appErrors.Clone(appErrors.ErrRemedialDatesRequired, "conductedFrom must not be after conductedTo")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remedial payload")
	}

	detail, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := requireAdviserOrAdmin(actor, detail); err != nil {
		return nil, err
	}

	finals, err := s.finals.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load final grades")
	}
	if len(finals) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "promotion has not been committed")
	}
	byID := make(map[string]*models.FinalGrade, len(finals))
	for i := range finals {
		byID[finals[i].ID] = &finals[i]
	}

	resp := &dto.SaveRemedialsResponse{
		EnrollmentID:  detail.ID,
		ConductedFrom: *req.ConductedFrom,
		ConductedTo:   *req.ConductedTo,
		Status:        string(detail.Status),
		Lines:         make([]dto.RemedialLine, 0, len(req.Marks)),
	}
	seen := make(map[string]bool, len(req.Marks))
	var marks []models.RemedialMark
	for _, input := range req.Marks {
		final, ok := byID[input.FinalGradeID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "final grade "+input.FinalGradeID+" does not belong to this enrollment")
		}
		if !final.ForRemedial {
			return nil, appErrors.Clone(appErrors.ErrValidation, final.SubjectName+" is not marked for remedial")
		}
		if seen[final.ID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate mark for "+final.SubjectName)
		}
		seen[final.ID] = true

		result := grading.Recompute(final.GeneralAverage, input.RemedialGrade)
		if result == nil {
			continue
		}
		marks = append(marks, models.RemedialMark{
			FinalGradeID:    final.ID,
			RemedialGrade:   *input.RemedialGrade,
			RecomputedGrade: result.FinalGrade,
			Remark:          result.Remark,
		})
		recomputed := result.FinalGrade
		final.RecomputedGrade = &recomputed
		resp.Lines = append(resp.Lines, dto.RemedialLine{
			FinalGradeID:    final.ID,
			SubjectName:     final.SubjectName,
			GeneralAverage:  final.GeneralAverage,
			RemedialGrade:   *input.RemedialGrade,
			RecomputedGrade: result.FinalGrade,
			Remark:          result.Remark,
		})
	}
	if len(marks) == 0 {
		return resp, nil
	}

	commit := repository.RemedialCommit{
		EnrollmentID:  detail.ID,
		StudentID:     detail.StudentID,
		ConductedFrom: *req.ConductedFrom,
		ConductedTo:   *req.ConductedTo,
		Marks:         marks,
	}
	if detail.Status == models.EnrollmentStatusConditionallyPromoted && allCleared(finals) {
		next := statusForOutcome(grading.Promoted, detail.GradeLevel)
		commit.Status = &next
		resp.Status = string(next)
	}
	if err := s.finals.SaveRemedials(ctx, commit); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "final grades changed, reload and try again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save remedial grades")
	}

	s.cache.InvalidateSummary(ctx, detail.ID)
	for _, mark := range marks {
		s.metrics.RecordRemedial(mark.Remark)
	}
	s.logger.Info("remedial grades saved",
		zap.String("enrollment_id", detail.ID),
		zap.Int("marks", len(marks)),
		zap.String("status", resp.Status),
		zap.String("actor", actor.UserID),
	)
	return resp, nil
}

func allCleared(finals []models.FinalGrade) bool {
	for _, f := range finals {
		if !f.Passed() {
			return false
		}
	}
	return true
}
