package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-records-api/internal/models"
)

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.section_id, e.school_year, e.status, e.enrolled_at, e.updated_at,
        s.full_name AS student_name, s.lrn AS student_lrn, sec.name AS section_name, sec.grade_level, sec.adviser_id
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN sections sec ON sec.id = e.section_id`

// EnrollmentRepository handles persistence of enrollments and their subject grade rows.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)))
	}
	if filter.SchoolYear != "" {
		args = append(args, filter.SchoolYear)
		conditions = append(conditions, fmt.Sprintf("e.school_year = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("%s%s ORDER BY e.school_year DESC, s.full_name ASC LIMIT %d OFFSET %d", enrollmentDetailSelect, clause, size, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments e"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListBySection returns every enrollment of a section regardless of status.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.section_id = $1 ORDER BY s.full_name ASC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByStudent returns a learner's enrollment history ordered by school year.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.student_id = $1 ORDER BY e.school_year ASC, sec.grade_level ASC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// FindDetailByID returns an enrollment with student and section context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+" WHERE e.id = $1", id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindActiveByStudent returns the learner's open enrollment, or nil when none exists.
func (r *EnrollmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, section_id, school_year, status, enrolled_at, updated_at
FROM enrollments WHERE student_id = $1 AND status = $2 LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, models.EnrollmentStatusEnrolled); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &enrollment, nil
}

// Enroll inserts the enrollment, one empty subject grade row per subject, and marks the
// student as enrolled. All writes share one transaction.
func (r *EnrollmentRepository) Enroll(ctx context.Context, enrollment *models.Enrollment, subjectIDs []string) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	enrollment.Status = models.EnrollmentStatusEnrolled

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertEnrollment = `INSERT INTO enrollments (id, student_id, section_id, school_year, status, enrolled_at, updated_at)
VALUES (:id, :student_id, :section_id, :school_year, :status, :enrolled_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertEnrollment, enrollment); err != nil {
		if isUniqueViolation(err) {
			err = ErrActiveEnrollmentExists
			return err
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	if err = insertSubjectGrades(ctx, tx, enrollment, subjectIDs, now); err != nil {
		return err
	}
	if err = updateStudentStatus(ctx, tx, enrollment.StudentID, models.EnrollmentStatusEnrolled, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// ErrActiveEnrollmentExists is returned when the partial unique index on open enrollments rejects an insert.
var ErrActiveEnrollmentExists = errors.New("student already has an open enrollment")

// ErrSubjectGraded is returned when a subject cannot be removed because grades exist for it.
var ErrSubjectGraded = errors.New("subject grade record has recorded grades")

// UpdateSubjects adds and removes subject grade rows of an enrollment in one transaction.
// A row is only removed while it holds no quarter grade and no intervention.
func (r *EnrollmentRepository) UpdateSubjects(ctx context.Context, enrollment *models.Enrollment, add, remove []string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update enrollment subjects: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteQuery = `DELETE FROM subject_grades g
WHERE g.enrollment_id = $1 AND g.subject_id = $2
    AND g.first_quarter IS NULL AND g.second_quarter IS NULL
    AND g.third_quarter IS NULL AND g.fourth_quarter IS NULL
    AND NOT EXISTS (SELECT 1 FROM grade_interventions i WHERE i.subject_grade_id = g.id)`
	for _, subjectID := range remove {
		var res sql.Result
		if res, err = tx.ExecContext(ctx, deleteQuery, enrollment.ID, subjectID); err != nil {
			return fmt.Errorf("remove enrollment subject: %w", err)
		}
		if affected, rowsErr := res.RowsAffected(); rowsErr == nil && affected == 0 {
			err = ErrSubjectGraded
			return err
		}
	}

	now := time.Now().UTC()
	if err = insertSubjectGrades(ctx, tx, enrollment, add, now); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET updated_at = $2 WHERE id = $1`, enrollment.ID, now); err != nil {
		return fmt.Errorf("touch enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update enrollment subjects: %w", err)
	}
	return nil
}

// Drop closes an enrollment and records the dropped standing on the student.
func (r *EnrollmentRepository) Drop(ctx context.Context, enrollment *models.Enrollment) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err = updateEnrollmentStatus(ctx, tx, enrollment.ID, models.EnrollmentStatusDropped, now); err != nil {
		return err
	}
	if err = updateStudentStatus(ctx, tx, enrollment.StudentID, models.EnrollmentStatusDropped, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit drop enrollment: %w", err)
	}
	enrollment.Status = models.EnrollmentStatusDropped
	enrollment.UpdatedAt = now
	return nil
}

func insertSubjectGrades(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment, subjectIDs []string, now time.Time) error {
	const query = `INSERT INTO subject_grades (id, enrollment_id, student_id, subject_id, school_year, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	for _, subjectID := range subjectIDs {
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), enrollment.ID, enrollment.StudentID, subjectID, enrollment.SchoolYear, now); err != nil {
			return fmt.Errorf("insert subject grade: %w", err)
		}
	}
	return nil
}

func updateEnrollmentStatus(ctx context.Context, exec sqlx.ExecerContext, enrollmentID string, status models.EnrollmentStatus, at time.Time) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, enrollmentID, status, at); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
