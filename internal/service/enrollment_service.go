package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	Enroll(ctx context.Context, enrollment *models.Enrollment, subjectIDs []string) error
	UpdateSubjects(ctx context.Context, enrollment *models.Enrollment, add, remove []string) error
	Drop(ctx context.Context, enrollment *models.Enrollment) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListSubjects(ctx context.Context, sectionID string) ([]models.SectionSubjectAssignment, error)
}

type subjectGradeLister interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubjectGrade, error)
}

// EnrollStudentRequest describes enrollment creation. SubjectIDs defaults to the section's
// subject list when empty.
type EnrollStudentRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	SectionID  string   `json:"section_id" validate:"required"`
	SubjectIDs []string `json:"subject_ids" validate:"omitempty,dive,required"`
}

// UpdateEnrollmentSubjectsRequest replaces the subject list of an enrollment.
type UpdateEnrollmentSubjectsRequest struct {
	SubjectIDs []string `json:"subject_ids" validate:"required,min=1,dive,required"`
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	sections  sectionReader
	subjects  subjectLookup
	grades    subjectGradeLister
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, sections sectionReader, subjects subjectLookup, grades subjectGradeLister, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		sections:  sections,
		subjects:  subjects,
		grades:    grades,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// List returns enrollments with pagination.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with student and section context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return loadEnrollment(ctx, s.repo, id)
}

// Enroll registers a student to a section and creates the empty subject grade records.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	switch student.Status {
	case models.EnrollmentStatusEnrolled:
		return nil, appErrors.ErrAlreadyEnrolled
	case models.EnrollmentStatusGraduated:
		return nil, appErrors.ErrStudentGraduated
	}
	active, err := s.repo.FindActiveByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if active != nil {
		return nil, appErrors.ErrAlreadyEnrolled
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	subjectIDs, err := s.resolveSubjects(ctx, section.ID, req.SubjectIDs)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{StudentID: student.ID, SectionID: section.ID, SchoolYear: section.SchoolYear}
	if err := s.repo.Enroll(ctx, enrollment, subjectIDs); err != nil {
		if errors.Is(err, repository.ErrActiveEnrollmentExists) {
			return nil, appErrors.ErrAlreadyEnrolled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", student.ID),
		zap.String("section_id", section.ID),
		zap.Int("subjects", len(subjectIDs)),
	)
	return loadEnrollment(ctx, s.repo, enrollment.ID)
}

// UpdateSubjects changes the subject list. Subjects that already carry grades cannot be removed.
func (s *EnrollmentService) UpdateSubjects(ctx context.Context, id string, req UpdateEnrollmentSubjectsRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject list")
	}
	detail, err := loadEnrollment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if detail.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "subjects can only change while enrolled")
	}

	wanted, err := s.resolveSubjects(ctx, detail.SectionID, req.SubjectIDs)
	if err != nil {
		return nil, err
	}
	current, err := s.grades.ListByEnrollment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}

	keep := make(map[string]bool, len(wanted))
	for _, subjectID := range wanted {
		keep[subjectID] = true
	}
	existing := make(map[string]bool, len(current))
	var remove []string
	for _, grade := range current {
		existing[grade.SubjectID] = true
		if keep[grade.SubjectID] {
			continue
		}
		if grade.HasEntries() {
			return nil, appErrors.ErrGradesRecorded
		}
		remove = append(remove, grade.SubjectID)
	}
	var add []string
	for _, subjectID := range wanted {
		if !existing[subjectID] {
			add = append(add, subjectID)
		}
	}
	if len(add) == 0 && len(remove) == 0 {
		return detail, nil
	}

	if err := s.repo.UpdateSubjects(ctx, &detail.Enrollment, add, remove); err != nil {
		if errors.Is(err, repository.ErrSubjectGraded) {
			return nil, appErrors.ErrGradesRecorded
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subjects")
	}
	s.cache.InvalidateSummary(ctx, id)
	return loadEnrollment(ctx, s.repo, id)
}

// Drop marks an open enrollment as dropped.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := loadEnrollment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if detail.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only an enrolled student can be dropped")
	}
	if err := s.repo.Drop(ctx, &detail.Enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}
	s.cache.InvalidateSummary(ctx, id)
	s.logger.Info("enrollment dropped", zap.String("enrollment_id", id))
	return detail, nil
}

func (s *EnrollmentService) resolveSubjects(ctx context.Context, sectionID string, requested []string) ([]string, error) {
	if len(requested) == 0 {
		assignments, err := s.sections.ListSubjects(ctx, sectionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section subjects")
		}
		ids := make([]string, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.SubjectID)
		}
		return ids, nil
	}

	seen := make(map[string]bool, len(requested))
	ids := make([]string, 0, len(requested))
	for _, subjectID := range requested {
		if seen[subjectID] {
			continue
		}
		seen[subjectID] = true
		if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrValidation, "subject "+subjectID+" does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject")
		}
		ids = append(ids, subjectID)
	}
	return ids, nil
}

type enrollmentDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

func loadEnrollment(ctx context.Context, repo enrollmentDetailReader, id string) (*models.EnrollmentDetail, error) {
	detail, err := repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}
