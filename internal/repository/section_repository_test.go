package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
)

func TestSectionRepositoryCreateInsertsSubjectsInOneTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	teacher := "teacher-1"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sections")).
		WithArgs(sqlmock.AnyArg(), "Rizal", 8, "2024-2025", "adviser-1", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO section_subjects")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "math", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO section_subjects")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "music", "teacher-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	section := &models.Section{Name: "Rizal", GradeLevel: 8, SchoolYear: "2024-2025", AdviserID: "adviser-1"}
	err := repo.Create(context.Background(), section, []models.SectionSubject{
		{SubjectID: "math"},
		{SubjectID: "music", TeacherID: &teacher},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, section.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sections")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO section_subjects")).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Section{Name: "Rizal", GradeLevel: 8}, []models.SectionSubject{{SubjectID: "ghost"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositorySubjectTeacherIDUnassigned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT teacher_id FROM section_subjects")).
		WithArgs("sec-1", "math").
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id"}))

	teacherID, err := repo.SubjectTeacherID(context.Background(), "sec-1", "math")
	require.NoError(t, err)
	assert.Nil(t, teacherID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryUpdateSchemeMissingSubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects SET weight_scheme = $2")).
		WithArgs("missing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateScheme(context.Background(), "missing", models.GradingScheme{WeightScheme: grading.Modular{WrittenWork: 50, PerformanceTask: 50}})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
