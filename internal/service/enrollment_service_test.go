package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

func newEnrollmentFixture(students ...models.Student) (*EnrollmentService, *fakeEnrollmentStore, *fakeGradeStore) {
	studentRepo := &mockStudentRepo{students: map[string]models.Student{}}
	for _, s := range students {
		studentRepo.students[s.ID] = s
	}
	sections := &fakeSectionReader{
		sections: map[string]models.Section{"sec-1": {ID: "sec-1", Name: "Rizal", GradeLevel: 8, SchoolYear: "2024-2025"}},
		subjects: map[string][]models.SectionSubjectAssignment{
			"sec-1": {
				{SectionSubject: models.SectionSubject{SubjectID: "math"}},
				{SectionSubject: models.SectionSubject{SubjectID: "english"}},
			},
		},
	}
	subjects := fakeSubjectLookup{"math": {ID: "math"}, "english": {ID: "english"}, "science": {ID: "science"}}
	store := newFakeEnrollmentStore()
	grades := newFakeGradeStore()
	svc := NewEnrollmentService(store, studentRepo, sections, subjects, grades, nil, nil, nil)
	return svc, store, grades
}

func TestEnrollmentServiceEnrollDefaultsToSectionSubjects(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(models.Student{ID: "stu-1", Status: models.EnrollmentStatusNotEnrolled})

	detail, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, "enr-new", detail.ID)
	assert.Equal(t, "2024-2025", detail.SchoolYear)
	assert.ElementsMatch(t, []string{"math", "english"}, store.enrolled)
}

func TestEnrollmentServiceEnrollExplicitSubjects(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(models.Student{ID: "stu-1", Status: models.EnrollmentStatusPromoted})

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", SectionID: "sec-1", SubjectIDs: []string{"science", "science", "math"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"science", "math"}, store.enrolled)

	_, err = svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", SectionID: "sec-1", SubjectIDs: []string{"unknown"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsStudentStanding(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(
		models.Student{ID: "enrolled", Status: models.EnrollmentStatusEnrolled},
		models.Student{ID: "graduate", Status: models.EnrollmentStatusGraduated},
	)

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "enrolled", SectionID: "sec-1"})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)

	_, err = svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "graduate", SectionID: "sec-1"})
	assert.ErrorIs(t, err, appErrors.ErrStudentGraduated)

	_, err = svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "missing", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsOpenEnrollment(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(models.Student{ID: "stu-1", Status: models.EnrollmentStatusRetained})
	store.active["stu-1"] = &models.Enrollment{ID: "enr-old", StudentID: "stu-1"}

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", SectionID: "sec-1"})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)
}

func TestEnrollmentServiceEnrollMapsConcurrentInsert(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(models.Student{ID: "stu-1", Status: models.EnrollmentStatusNotEnrolled})
	store.enrollErr = repository.ErrActiveEnrollmentExists

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", SectionID: "sec-1"})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)
}

func TestEnrollmentServiceUpdateSubjectsDiff(t *testing.T) {
	svc, store, grades := newEnrollmentFixture()
	store.details["enr-1"] = &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "enr-1", SectionID: "sec-1", Status: models.EnrollmentStatusEnrolled}}
	math := gradeRow("g-math", "enr-1", "Mathematics", 80)
	math.SubjectID = "math"
	english := gradeRow("g-eng", "enr-1", "English")
	english.SubjectID = "english"
	grades.rows = map[string]*models.SubjectGrade{"g-math": &math, "g-eng": &english}
	grades.order = []string{"g-math", "g-eng"}

	_, err := svc.UpdateSubjects(context.Background(), "enr-1", UpdateEnrollmentSubjectsRequest{SubjectIDs: []string{"math", "science"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"science"}, store.added)
	assert.Equal(t, []string{"english"}, store.removed)
}

func TestEnrollmentServiceUpdateSubjectsRefusesGradedRemoval(t *testing.T) {
	svc, store, grades := newEnrollmentFixture()
	store.details["enr-1"] = &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "enr-1", SectionID: "sec-1", Status: models.EnrollmentStatusEnrolled}}
	math := gradeRow("g-math", "enr-1", "Mathematics", 80)
	math.SubjectID = "math"
	grades.rows = map[string]*models.SubjectGrade{"g-math": &math}
	grades.order = []string{"g-math"}

	_, err := svc.UpdateSubjects(context.Background(), "enr-1", UpdateEnrollmentSubjectsRequest{SubjectIDs: []string{"english"}})
	assert.ErrorIs(t, err, appErrors.ErrGradesRecorded)
	assert.Empty(t, store.removed)
}

func TestEnrollmentServiceDrop(t *testing.T) {
	svc, store, _ := newEnrollmentFixture()
	store.details["enr-1"] = &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusEnrolled}}
	store.details["enr-2"] = &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "enr-2", Status: models.EnrollmentStatusPromoted}}

	_, err := svc.Drop(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1"}, store.dropped)

	_, err = svc.Drop(context.Background(), "enr-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
