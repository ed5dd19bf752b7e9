package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
)

const subjectGradeSelect = `SELECT g.id, g.enrollment_id, g.student_id, g.subject_id, g.school_year,
        g.first_quarter, g.second_quarter, g.third_quarter, g.fourth_quarter,
        s.name AS subject_name, s.code AS subject_code, g.created_at, g.updated_at
        FROM subject_grades g
        JOIN subjects s ON s.id = g.subject_id`

const interventionColumns = "id, subject_grade_id, quarter, grade, used, remarks, recorded_by, recorded_at"

// SubjectGradeRepository persists quarter grades and their intervention history.
type SubjectGradeRepository struct {
	db *sqlx.DB
}

// NewSubjectGradeRepository constructs the repository.
func NewSubjectGradeRepository(db *sqlx.DB) *SubjectGradeRepository {
	return &SubjectGradeRepository{db: db}
}

// ListByEnrollment returns all subject grade rows of an enrollment with the latest
// intervention per quarter attached.
func (r *SubjectGradeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubjectGrade, error) {
	query := subjectGradeSelect + " WHERE g.enrollment_id = $1 ORDER BY s.name ASC"
	var grades []models.SubjectGrade
	if err := r.db.SelectContext(ctx, &grades, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list subject grades: %w", err)
	}
	if len(grades) == 0 {
		return grades, nil
	}

	ids := make([]string, len(grades))
	for i := range grades {
		ids[i] = grades[i].ID
	}
	latest, err := r.latestInterventions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range grades {
		grades[i].Interventions = latest[grades[i].ID]
	}
	return grades, nil
}

// FindByID returns one subject grade row with its latest interventions.
func (r *SubjectGradeRepository) FindByID(ctx context.Context, id string) (*models.SubjectGrade, error) {
	var grade models.SubjectGrade
	if err := r.db.GetContext(ctx, &grade, subjectGradeSelect+" WHERE g.id = $1", id); err != nil {
		return nil, err
	}
	latest, err := r.latestInterventions(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	grade.Interventions = latest[id]
	return &grade, nil
}

func (r *SubjectGradeRepository) latestInterventions(ctx context.Context, ids []string) (map[string]map[grading.Quarter]*models.GradeIntervention, error) {
	const query = `SELECT DISTINCT ON (subject_grade_id, quarter) ` + interventionColumns + `
FROM grade_interventions WHERE subject_grade_id = ANY($1)
ORDER BY subject_grade_id, quarter, recorded_at DESC`
	var rows []models.GradeIntervention
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list latest interventions: %w", err)
	}

	result := make(map[string]map[grading.Quarter]*models.GradeIntervention, len(ids))
	for i := range rows {
		row := rows[i]
		q := grading.Quarter(row.Quarter)
		if !q.Valid() {
			continue
		}
		if result[row.SubjectGradeID] == nil {
			result[row.SubjectGradeID] = make(map[grading.Quarter]*models.GradeIntervention)
		}
		result[row.SubjectGradeID][q] = &row
	}
	return result, nil
}

// ListInterventions returns the full intervention history of a subject grade, oldest first.
func (r *SubjectGradeRepository) ListInterventions(ctx context.Context, subjectGradeID string) ([]models.GradeIntervention, error) {
	query := "SELECT " + interventionColumns + " FROM grade_interventions WHERE subject_grade_id = $1 ORDER BY recorded_at ASC"
	var rows []models.GradeIntervention
	if err := r.db.SelectContext(ctx, &rows, query, subjectGradeID); err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	return rows, nil
}

// SetQuarter stores the plain grade of one quarter.
func (r *SubjectGradeRepository) SetQuarter(ctx context.Context, id string, quarter grading.Quarter, grade *float64) error {
	column, ok := models.QuarterColumn(quarter)
	if !ok {
		return fmt.Errorf("invalid quarter %d", quarter)
	}
	query := fmt.Sprintf("UPDATE subject_grades SET %s = $2, updated_at = $3 WHERE id = $1", column)
	res, err := r.db.ExecContext(ctx, query, id, grade, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update quarter grade: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendIntervention stores a new intervention entry; earlier entries are kept as history.
func (r *SubjectGradeRepository) AppendIntervention(ctx context.Context, intervention *models.GradeIntervention) error {
	if intervention.ID == "" {
		intervention.ID = uuid.NewString()
	}
	if intervention.RecordedAt.IsZero() {
		intervention.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_interventions (` + interventionColumns + `)
VALUES (:id, :subject_grade_id, :quarter, :grade, :used, :remarks, :recorded_by, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, intervention); err != nil {
		return fmt.Errorf("append intervention: %w", err)
	}
	return nil
}
