package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-records-api/internal/models"
)

// AttendanceRepository persists monthly attendance tallies per enrollment.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByEnrollment returns the monthly tallies of an enrollment.
func (r *AttendanceRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, enrollment_id, month, school_days, days_present, updated_at
FROM attendance_records WHERE enrollment_id = $1 ORDER BY month ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Upsert writes the given months for an enrollment in one transaction.
func (r *AttendanceRepository) Upsert(ctx context.Context, enrollmentID string, records []models.AttendanceRecord) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO attendance_records (id, enrollment_id, month, school_days, days_present, updated_at)
VALUES (:id, :enrollment_id, :month, :school_days, :days_present, :updated_at)
ON CONFLICT (enrollment_id, month) DO UPDATE SET
    school_days = EXCLUDED.school_days,
    days_present = EXCLUDED.days_present,
    updated_at = EXCLUDED.updated_at`
	for i := range records {
		record := &records[i]
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.EnrollmentID = enrollmentID
		record.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, record); err != nil {
			return fmt.Errorf("upsert attendance month %d: %w", record.Month, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance upsert: %w", err)
	}
	return nil
}
