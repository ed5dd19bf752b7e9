package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type subjectGradeRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubjectGrade, error)
	FindByID(ctx context.Context, id string) (*models.SubjectGrade, error)
	ListInterventions(ctx context.Context, subjectGradeID string) ([]models.GradeIntervention, error)
	SetQuarter(ctx context.Context, id string, quarter grading.Quarter, grade *float64) error
	AppendIntervention(ctx context.Context, intervention *models.GradeIntervention) error
}

type finalGradeReader interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinalGrade, error)
	ExistsForSubjectGrade(ctx context.Context, subjectGradeID string) (bool, error)
}

type subjectTeacherLookup interface {
	SubjectTeacherID(ctx context.Context, sectionID, subjectID string) (*string, error)
}

// GradeService records quarter grades and interventions and computes grade summaries.
type GradeService struct {
	grades      subjectGradeRepository
	finals      finalGradeReader
	enrollments enrollmentDetailReader
	teachers    subjectTeacherLookup
	subjects    subjectLookup
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradeService constructs GradeService.
func NewGradeService(grades subjectGradeRepository, finals finalGradeReader, enrollments enrollmentDetailReader, teachers subjectTeacherLookup, subjects subjectLookup, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:      grades,
		finals:      finals,
		enrollments: enrollments,
		teachers:    teachers,
		subjects:    subjects,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Summary returns the computed grade sheet of an enrollment. The second return value
// reports whether the summary came from cache.
func (s *GradeService) Summary(ctx context.Context, enrollmentID string) (*dto.GradeSummary, bool, error) {
	return remember(ctx, s.cache, summaryCacheKey(enrollmentID), 0, func() (*dto.GradeSummary, error) {
		detail, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
		if err != nil {
			return nil, err
		}
		grades, err := s.grades.ListByEnrollment(ctx, enrollmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
		}
		finals, err := s.finals.ListByEnrollment(ctx, enrollmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load final grades")
		}
		return BuildGradeSummary(detail, grades, finals), nil
	})
}

// RecordQuarterGrade sets or clears the plain grade of one quarter.
func (s *GradeService) RecordQuarterGrade(ctx context.Context, recordID string, quarter int, req dto.RecordQuarterGradeRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade")
	}
	q, err := parseQuarter(quarter)
	if err != nil {
		return nil, err
	}
	grade, detail, err := s.prepareWrite(ctx, recordID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.setQuarter(ctx, grade, q, req.Grade); err != nil {
		return nil, err
	}
	s.metrics.RecordGradeWrite("quarter")
	s.logger.Info("quarter grade recorded",
		zap.String("subject_grade_id", grade.ID),
		zap.String("enrollment_id", detail.ID),
		zap.Int("quarter", quarter),
		zap.String("actor", actor.UserID),
	)
	return s.afterWrite(ctx, grade)
}

// RecordComponentScores computes the quarter grade from component scores using the
// subject's weight scheme and stores it as the plain grade.
func (s *GradeService) RecordComponentScores(ctx context.Context, recordID string, quarter int, req dto.RecordComponentScoresRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component scores")
	}
	q, err := parseQuarter(quarter)
	if err != nil {
		return nil, err
	}
	grade, _, err := s.prepareWrite(ctx, recordID, actor)
	if err != nil {
		return nil, err
	}

	subject, err := s.subjects.FindByID(ctx, grade.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.Scheme.WeightScheme == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "subject has no weight scheme")
	}
	value, err := subject.Scheme.QuarterGrade(grading.ComponentScores(req.Scores))
	if err != nil {
		if errors.Is(err, grading.ErrInvalidWeights) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidWeights.Code, appErrors.ErrInvalidWeights.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.setQuarter(ctx, grade, q, &value); err != nil {
		return nil, err
	}
	s.metrics.RecordGradeWrite("components")
	s.logger.Info("quarter grade computed from components",
		zap.String("subject_grade_id", grade.ID),
		zap.String("scheme", string(subject.Scheme.Kind())),
		zap.Float64("grade", value),
	)
	return s.afterWrite(ctx, grade)
}

// AddIntervention appends an intervention for a quarter. The newest intervention of a
// quarter supersedes the plain grade and older interventions.
func (s *GradeService) AddIntervention(ctx context.Context, recordID string, req dto.AddInterventionRequest, actor *models.JWTClaims) (*dto.SubjectGradeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention")
	}
	if _, err := parseQuarter(req.Quarter); err != nil {
		return nil, err
	}
	grade, _, err := s.prepareWrite(ctx, recordID, actor)
	if err != nil {
		return nil, err
	}

	intervention := &models.GradeIntervention{
		SubjectGradeID: grade.ID,
		Quarter:        req.Quarter,
		Grade:          *req.Grade,
		Used:           models.StringList(req.Used),
		Remarks:        req.Remarks,
		RecordedBy:     actor.UserID,
		RecordedAt:     s.now().UTC(),
	}
	if err := s.grades.AppendIntervention(ctx, intervention); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save intervention")
	}
	s.metrics.RecordGradeWrite("intervention")
	s.logger.Info("intervention recorded",
		zap.String("subject_grade_id", grade.ID),
		zap.Int("quarter", req.Quarter),
		zap.Float64("grade", *req.Grade),
		zap.String("actor", actor.UserID),
	)
	return s.afterWrite(ctx, grade)
}

// GetRecord returns one subject grade with its intervention history.
func (s *GradeService) GetRecord(ctx context.Context, recordID string) (*dto.SubjectGradeResponse, error) {
	grade, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return s.response(ctx, grade)
}

func (s *GradeService) prepareWrite(ctx context.Context, recordID string, actor *models.JWTClaims) (*models.SubjectGrade, *models.EnrollmentDetail, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	grade, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}
	detail, err := loadEnrollment(ctx, s.enrollments, grade.EnrollmentID)
	if err != nil {
		return nil, nil, err
	}
	if detail.Status == models.EnrollmentStatusDropped {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment was dropped")
	}

	teacherID, err := s.teachers.SubjectTeacherID(ctx, detail.SectionID, grade.SubjectID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subject teacher")
	}
	if err := requireGradeEditor(actor, detail, teacherID); err != nil {
		return nil, nil, err
	}

	finalized, err := s.finals.ExistsForSubjectGrade(ctx, grade.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check finalisation")
	}
	if finalized {
		return nil, nil, appErrors.Clone(appErrors.ErrFinalized, "grades are final once promotion has been committed")
	}
	return grade, detail, nil
}

func (s *GradeService) loadRecord(ctx context.Context, recordID string) (*models.SubjectGrade, error) {
	grade, err := s.grades.FindByID(ctx, recordID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade record")
	}
	return grade, nil
}

func (s *GradeService) setQuarter(ctx context.Context, grade *models.SubjectGrade, q grading.Quarter, value *float64) error {
	if err := s.grades.SetQuarter(ctx, grade.ID, q, value); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	return nil
}

func (s *GradeService) afterWrite(ctx context.Context, grade *models.SubjectGrade) (*dto.SubjectGradeResponse, error) {
	s.cache.InvalidateSummary(ctx, grade.EnrollmentID)
	fresh, err := s.loadRecord(ctx, grade.ID)
	if err != nil {
		return nil, err
	}
	return s.response(ctx, fresh)
}

func (s *GradeService) response(ctx context.Context, grade *models.SubjectGrade) (*dto.SubjectGradeResponse, error) {
	history, err := s.grades.ListInterventions(ctx, grade.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load intervention history")
	}
	quarters := grade.Quarters()
	resp := &dto.SubjectGradeResponse{
		RecordID:     grade.ID,
		EnrollmentID: grade.EnrollmentID,
		SubjectID:    grade.SubjectID,
		SubjectName:  grade.SubjectName,
		Quarters:     quarterCells(*grade, quarters),
		Average:      grading.QuarterlyAverage(quarters),
	}
	resp.Remark = remarkOf(resp.Average)
	for _, in := range history {
		resp.History = append(resp.History, *interventionView(in))
	}
	return resp, nil
}

func parseQuarter(quarter int) (grading.Quarter, error) {
	q := grading.Quarter(quarter)
	if !q.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, "quarter must be between 1 and 4")
	}
	return q, nil
}
