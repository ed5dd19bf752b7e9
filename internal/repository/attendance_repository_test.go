package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/models"
)

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "enr-1", 6, 20, 18, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (enrollment_id, month)")).
		WithArgs(sqlmock.AnyArg(), "enr-1", 7, 22, 22, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	records := []models.AttendanceRecord{
		{Month: 6, SchoolDays: 20, DaysPresent: 18},
		{Month: 7, SchoolDays: 22, DaysPresent: 22},
	}
	require.NoError(t, repo.Upsert(context.Background(), "enr-1", records))
	assert.Equal(t, "enr-1", records[0].EnrollmentID)
	assert.NotEmpty(t, records[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "month", "school_days", "days_present", "updated_at"}).
		AddRow("att-1", "enr-1", 6, 20, 17, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	records, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].DaysAbsent())
	require.NoError(t, mock.ExpectationsWereMet())
}
