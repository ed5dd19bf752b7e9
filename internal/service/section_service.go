package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListSubjects(ctx context.Context, sectionID string) ([]models.SectionSubjectAssignment, error)
	Create(ctx context.Context, section *models.Section, subjects []models.SectionSubject) error
}

type subjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// SectionSubjectInput assigns a subject and optional subject teacher to a section.
type SectionSubjectInput struct {
	SubjectID string  `json:"subject_id" validate:"required"`
	TeacherID *string `json:"teacher_id"`
}

// CreateSectionRequest holds payload for creating a section.
type CreateSectionRequest struct {
	Name       string                `json:"name" validate:"required"`
	GradeLevel int                   `json:"grade_level" validate:"required,min=7,max=12"`
	SchoolYear string                `json:"school_year" validate:"required,len=9"`
	AdviserID  string                `json:"adviser_id" validate:"required"`
	Track      *string               `json:"track"`
	Subjects   []SectionSubjectInput `json:"subjects" validate:"required,min=1,dive"`
}

// SectionService manages sections and their fixed subject lists.
type SectionService struct {
	repo      sectionRepository
	subjects  subjectLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs the section service.
func NewSectionService(repo sectionRepository, subjects subjectLookup, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// List returns sections with pagination.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a section with its subject list.
func (s *SectionService) Get(ctx context.Context, id string) (*models.SectionDetail, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	subjects, err := s.repo.ListSubjects(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section subjects")
	}
	return &models.SectionDetail{Section: *section, Subjects: subjects}, nil
}

// Create stores a section and its subject list.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.SectionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}

	seen := make(map[string]bool, len(req.Subjects))
	subjects := make([]models.SectionSubject, 0, len(req.Subjects))
	for _, input := range req.Subjects {
		if seen[input.SubjectID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate subject in section")
		}
		seen[input.SubjectID] = true
		if _, err := s.subjects.FindByID(ctx, input.SubjectID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrValidation, "subject "+input.SubjectID+" does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject")
		}
		subjects = append(subjects, models.SectionSubject{SubjectID: input.SubjectID, TeacherID: input.TeacherID})
	}

	section := &models.Section{
		Name:       req.Name,
		GradeLevel: req.GradeLevel,
		SchoolYear: req.SchoolYear,
		AdviserID:  req.AdviserID,
		Track:      req.Track,
	}
	if err := s.repo.Create(ctx, section, subjects); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	s.logger.Info("section created", zap.String("section_id", section.ID), zap.Int("subjects", len(subjects)))
	return s.Get(ctx, section.ID)
}
