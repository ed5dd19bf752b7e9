package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-records-api/internal/models"
)

const finalGradeSelect = `SELECT f.id, f.enrollment_id, f.subject_grade_id, f.subject_id, f.general_average, f.for_remedial,
        f.remedial_grade, f.recomputed_grade, f.remedial_remark, f.remedial_conducted_from, f.remedial_conducted_to,
        s.name AS subject_name, f.created_at, f.updated_at
        FROM final_grades f
        JOIN subjects s ON s.id = f.subject_id`

// PromotionCommit is the full set of writes that finalises a school year for one enrollment.
type PromotionCommit struct {
	EnrollmentID     string
	StudentID        string
	EnrollmentStatus models.EnrollmentStatus
	StudentStatus    models.EnrollmentStatus
	FinalGrades      []models.FinalGrade
}

// RemedialCommit records remedial results together with the resulting standing.
type RemedialCommit struct {
	EnrollmentID  string
	StudentID     string
	ConductedFrom time.Time
	ConductedTo   time.Time
	Marks         []models.RemedialMark
	// Status is set when the remedial outcome changes the learner's standing.
	Status *models.EnrollmentStatus
}

// FinalGradeRepository persists finalised subject grades and remedial results.
type FinalGradeRepository struct {
	db *sqlx.DB
}

// NewFinalGradeRepository constructs the repository.
func NewFinalGradeRepository(db *sqlx.DB) *FinalGradeRepository {
	return &FinalGradeRepository{db: db}
}

// ListByEnrollment returns the final grade records of an enrollment.
func (r *FinalGradeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinalGrade, error) {
	var grades []models.FinalGrade
	if err := r.db.SelectContext(ctx, &grades, finalGradeSelect+" WHERE f.enrollment_id = $1 ORDER BY s.name ASC", enrollmentID); err != nil {
		return nil, fmt.Errorf("list final grades: %w", err)
	}
	return grades, nil
}

// ExistsForSubjectGrade reports whether the subject grade has been finalised.
func (r *FinalGradeRepository) ExistsForSubjectGrade(ctx context.Context, subjectGradeID string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM final_grades WHERE subject_grade_id = $1 LIMIT 1", subjectGradeID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check final grade: %w", err)
	}
	return true, nil
}

// CommitPromotion upserts every final grade, then updates enrollment and student status,
// all inside one transaction. Re-committing replaces earlier values for the same subject.
func (r *FinalGradeRepository) CommitPromotion(ctx context.Context, commit PromotionCommit) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin promotion commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const upsert = `INSERT INTO final_grades (id, enrollment_id, subject_grade_id, subject_id, general_average, for_remedial, created_at, updated_at)
VALUES (:id, :enrollment_id, :subject_grade_id, :subject_id, :general_average, :for_remedial, :created_at, :updated_at)
ON CONFLICT (enrollment_id, subject_id) DO UPDATE SET
    subject_grade_id = EXCLUDED.subject_grade_id,
    general_average = EXCLUDED.general_average,
    for_remedial = EXCLUDED.for_remedial,
    updated_at = EXCLUDED.updated_at`
	for i := range commit.FinalGrades {
		grade := &commit.FinalGrades[i]
		if grade.ID == "" {
			grade.ID = uuid.NewString()
		}
		grade.EnrollmentID = commit.EnrollmentID
		grade.CreatedAt = now
		grade.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, upsert, grade); err != nil {
			return fmt.Errorf("upsert final grade: %w", err)
		}
	}

	if err = updateEnrollmentStatus(ctx, tx, commit.EnrollmentID, commit.EnrollmentStatus, now); err != nil {
		return err
	}
	if err = updateStudentStatus(ctx, tx, commit.StudentID, commit.StudentStatus, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit promotion: %w", err)
	}
	return nil
}

// SaveRemedials stores remedial grades and recomputed finals, and applies a status change if any.
func (r *FinalGradeRepository) SaveRemedials(ctx context.Context, commit RemedialCommit) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remedial commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const update = `UPDATE final_grades SET remedial_grade = $2, recomputed_grade = $3, remedial_remark = $4,
    remedial_conducted_from = $5, remedial_conducted_to = $6, updated_at = $7
WHERE id = $1 AND enrollment_id = $8 AND for_remedial = TRUE`
	for _, mark := range commit.Marks {
		var res sql.Result
		res, err = tx.ExecContext(ctx, update, mark.FinalGradeID, mark.RemedialGrade, mark.RecomputedGrade, string(mark.Remark),
			commit.ConductedFrom, commit.ConductedTo, now, commit.EnrollmentID)
		if err != nil {
			return fmt.Errorf("update remedial grade: %w", err)
		}
		if affected, rowsErr := res.RowsAffected(); rowsErr == nil && affected == 0 {
			err = sql.ErrNoRows
			return err
		}
	}

	if commit.Status != nil {
		if err = updateEnrollmentStatus(ctx, tx, commit.EnrollmentID, *commit.Status, now); err != nil {
			return err
		}
		if err = updateStudentStatus(ctx, tx, commit.StudentID, *commit.Status, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit remedials: %w", err)
	}
	return nil
}
