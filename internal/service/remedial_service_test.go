package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

func remedialFixture(status models.EnrollmentStatus, gradeLevel int) (*RemedialService, *fakeFinalStore) {
	detail := *juniorDetail()
	detail.Status = status
	detail.GradeLevel = gradeLevel
	finals := &fakeFinalStore{finals: []models.FinalGrade{
		{ID: "fg-english", EnrollmentID: "enr-1", SubjectName: "English", GeneralAverage: 70, ForRemedial: true},
		{ID: "fg-science", EnrollmentID: "enr-1", SubjectName: "Science", GeneralAverage: 72, ForRemedial: true},
		{ID: "fg-math", EnrollmentID: "enr-1", SubjectName: "Mathematics", GeneralAverage: 85},
	}}
	return NewRemedialService(newFakeEnrollmentStore(detail), finals, nil, nil, nil, nil), finals
}

func remedialDates() (*time.Time, *time.Time) {
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC)
	return &from, &to
}

func TestRemedialSaveRecomputesAndPromotes(t *testing.T) {
	svc, finals := remedialFixture(models.EnrollmentStatusConditionallyPromoted, 8)
	from, to := remedialDates()

	resp, err := svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{
		ConductedFrom: from,
		ConductedTo:   to,
		Marks: []dto.RemedialMarkInput{
			{FinalGradeID: "fg-english", RemedialGrade: ptr(85)},
			{FinalGradeID: "fg-science", RemedialGrade: ptr(80)},
		},
	}, adminActor())
	require.NoError(t, err)

	require.Len(t, resp.Lines, 2)
	// round((70 + 85) / 2) = 78
	assert.Equal(t, 78.0, resp.Lines[0].RecomputedGrade)
	assert.Equal(t, grading.Passed, resp.Lines[0].Remark)
	// (72 + 80) / 2 = 76
	assert.Equal(t, 76.0, resp.Lines[1].RecomputedGrade)
	assert.Equal(t, string(models.EnrollmentStatusPromoted), resp.Status)

	require.NotNil(t, finals.remedial)
	require.NotNil(t, finals.remedial.Status)
	assert.Equal(t, models.EnrollmentStatusPromoted, *finals.remedial.Status)
	assert.Equal(t, *from, finals.remedial.ConductedFrom)
	assert.Len(t, finals.remedial.Marks, 2)
}

func TestRemedialSaveKeepsStatusWhileFailuresRemain(t *testing.T) {
	svc, finals := remedialFixture(models.EnrollmentStatusConditionallyPromoted, 8)
	from, to := remedialDates()

	resp, err := svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{
		ConductedFrom: from,
		ConductedTo:   to,
		Marks: []dto.RemedialMarkInput{
			{FinalGradeID: "fg-english", RemedialGrade: ptr(76)},
			{FinalGradeID: "fg-science"},
		},
	}, adminActor())
	require.NoError(t, err)

	// round((70 + 76) / 2) = 73
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 73.0, resp.Lines[0].RecomputedGrade)
	assert.Equal(t, grading.Failed, resp.Lines[0].Remark)
	assert.Equal(t, string(models.EnrollmentStatusConditionallyPromoted), resp.Status)
	require.NotNil(t, finals.remedial)
	assert.Nil(t, finals.remedial.Status)
}

func TestRemedialSaveGraduatesFinalGradeLevel(t *testing.T) {
	svc, finals := remedialFixture(models.EnrollmentStatusConditionallyPromoted, 12)
	from, to := remedialDates()

	_, err := svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{
		ConductedFrom: from,
		ConductedTo:   to,
		Marks: []dto.RemedialMarkInput{
			{FinalGradeID: "fg-english", RemedialGrade: ptr(90)},
			{FinalGradeID: "fg-science", RemedialGrade: ptr(90)},
		},
	}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusGraduated, *finals.remedial.Status)
}

func TestRemedialSaveRequiresDates(t *testing.T) {
	svc, finals := remedialFixture(models.EnrollmentStatusConditionallyPromoted, 8)
	from, to := remedialDates()
	marks := []dto.RemedialMarkInput{{FinalGradeID: "fg-english", RemedialGrade: ptr(85)}}

	_, err := svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{ConductedFrom: from, Marks: marks}, adminActor())
	assert.ErrorIs(t, err, appErrors.ErrRemedialDatesRequired)

	_, err = svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{ConductedFrom: to, ConductedTo: from, Marks: marks}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRemedialDatesRequired.Code, appErrors.FromError(err).Code)
	assert.Nil(t, finals.remedial)
}

func TestRemedialSaveRejectsPassingSubject(t *testing.T) {
	svc, finals := remedialFixture(models.EnrollmentStatusConditionallyPromoted, 8)
	from, to := remedialDates()

	_, err := svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{
		ConductedFrom: from,
		ConductedTo:   to,
		Marks:         []dto.RemedialMarkInput{{FinalGradeID: "fg-math", RemedialGrade: ptr(90)}},
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{
		ConductedFrom: from,
		ConductedTo:   to,
		Marks:         []dto.RemedialMarkInput{{FinalGradeID: "fg-other", RemedialGrade: ptr(90)}},
	}, adminActor())
	require.Error(t, err)
	assert.Nil(t, finals.remedial)
}

func TestRemedialSaveBeforePromotion(t *testing.T) {
	svc, finals := remedialFixture(models.EnrollmentStatusEnrolled, 8)
	finals.finals = nil
	from, to := remedialDates()

	_, err := svc.Save(context.Background(), "enr-1", dto.SaveRemedialsRequest{
		ConductedFrom: from,
		ConductedTo:   to,
		Marks:         []dto.RemedialMarkInput{{FinalGradeID: "fg-english", RemedialGrade: ptr(90)}},
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRemedialList(t *testing.T) {
	svc, finals := remedialFixture(models.EnrollmentStatusConditionallyPromoted, 8)
	finals.finals[0].RemedialGrade = ptr(85)
	finals.finals[0].RecomputedGrade = ptr(78)

	views, err := svc.List(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, views, 3)
	require.NotNil(t, views[0].Remedial)
	assert.Equal(t, grading.Passed, views[0].Remedial.Remark)
	assert.Nil(t, views[2].Remedial)
}
