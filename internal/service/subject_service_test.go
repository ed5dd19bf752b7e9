package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type subjectRepoStub struct {
	subjects map[string]models.Subject
}

func (r *subjectRepoStub) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	out := make([]models.Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *subjectRepoStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := r.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *subjectRepoStub) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, s := range r.subjects {
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *subjectRepoStub) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = uuid.NewString()
	r.subjects[subject.ID] = *subject
	return nil
}

func (r *subjectRepoStub) UpdateScheme(ctx context.Context, id string, scheme models.GradingScheme) error {
	s, ok := r.subjects[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Scheme = scheme
	r.subjects[id] = s
	return nil
}

func TestSubjectServiceCreateWithScheme(t *testing.T) {
	repo := &subjectRepoStub{subjects: map[string]models.Subject{}}
	svc := NewSubjectService(repo, nil, nil)

	subject, err := svc.Create(context.Background(), CreateSubjectRequest{
		Code:         "MATH8",
		Name:         "Mathematics",
		Category:     models.SubjectCategoryRegular,
		WeightScheme: json.RawMessage(`{"kind":"face_to_face","written_work":40,"performance_task":40,"quarterly_assessment":20}`),
	})
	require.NoError(t, err)
	require.NotNil(t, subject.Scheme.WeightScheme)
	assert.Equal(t, grading.SchemeFaceToFace, subject.Scheme.Kind())

	_, err = svc.Create(context.Background(), CreateSubjectRequest{Code: "MATH8", Name: "Duplicate", Category: models.SubjectCategoryRegular})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestSubjectServiceRejectsBadInput(t *testing.T) {
	repo := &subjectRepoStub{subjects: map[string]models.Subject{}}
	svc := NewSubjectService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSubjectRequest{Code: "X", Name: "X", Category: "ELECTIVE"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, CreateSubjectRequest{
		Code:         "SCI8",
		Name:         "Science",
		Category:     models.SubjectCategoryRegular,
		WeightScheme: json.RawMessage(`{"kind":"modular","written_work":50,"performance_task":30}`),
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidWeights)
	assert.Empty(t, repo.subjects)
}

func TestSubjectServiceUpdateSchemeSwitchesVariant(t *testing.T) {
	repo := &subjectRepoStub{subjects: map[string]models.Subject{
		"sub-1": {ID: "sub-1", Code: "ENG8", Name: "English", Category: models.SubjectCategoryRegular,
			Scheme: models.GradingScheme{WeightScheme: grading.Other{Components: []grading.ComponentWeight{{Name: "Project", Weight: 100}}}}},
	}}
	svc := NewSubjectService(repo, nil, nil)

	subject, err := svc.UpdateScheme(context.Background(), "sub-1", json.RawMessage(`{"kind":"modular","written_work":50,"performance_task":50}`))
	require.NoError(t, err)
	assert.Equal(t, grading.Modular{WrittenWork: 50, PerformanceTask: 50}, subject.Scheme.WeightScheme)

	_, err = svc.UpdateScheme(context.Background(), "missing", json.RawMessage(`{"kind":"modular","written_work":50,"performance_task":50}`))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.UpdateScheme(context.Background(), "sub-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
