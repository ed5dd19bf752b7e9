package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	UpdateScheme(ctx context.Context, id string, scheme models.GradingScheme) error
}

// CreateSubjectRequest holds payload for creating a subject. WeightScheme is the tagged
// grade-weight variant, e.g. {"kind":"face_to_face","written_work":30,...}.
type CreateSubjectRequest struct {
	Code         string                 `json:"code" validate:"required"`
	Name         string                 `json:"name" validate:"required"`
	Category     models.SubjectCategory `json:"category" validate:"required"`
	WeightScheme json.RawMessage        `json:"weight_scheme"`
}

// SubjectService manages subjects and their grade-weight schemes.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs the subject service.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// List returns subjects with pagination.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a subject by ID.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create stores a subject after validating its weight scheme.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid subject category")
	}
	scheme, err := parseScheme(req.WeightScheme)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already used")
	}

	subject := &models.Subject{Code: req.Code, Name: req.Name, Category: req.Category, Scheme: scheme}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// UpdateScheme switches a subject to another grade-weight variant.
func (s *SubjectService) UpdateScheme(ctx context.Context, id string, raw json.RawMessage) (*models.Subject, error) {
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weight scheme is required")
	}
	scheme, err := parseScheme(raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateScheme(ctx, id, scheme); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update weight scheme")
	}
	return s.Get(ctx, id)
}

func parseScheme(raw json.RawMessage) (models.GradingScheme, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.GradingScheme{}, nil
	}
	scheme, err := grading.DecodeScheme(raw)
	if err != nil {
		return models.GradingScheme{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weight scheme")
	}
	if scheme != nil {
		if err := scheme.Validate(); err != nil {
			if errors.Is(err, grading.ErrInvalidWeights) {
				return models.GradingScheme{}, appErrors.Wrap(err, appErrors.ErrInvalidWeights.Code, appErrors.ErrInvalidWeights.Status, err.Error())
			}
			return models.GradingScheme{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weight scheme")
		}
	}
	return models.GradingScheme{WeightScheme: scheme}, nil
}
