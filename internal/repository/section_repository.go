package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-records-api/internal/models"
)

const sectionColumns = "id, name, grade_level, school_year, adviser_id, track, created_at, updated_at"

// SectionRepository handles persistence for sections and their subject lists.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository creates a new repository instance.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections matching filters.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error) {
	var conditions []string
	var args []interface{}

	if filter.GradeLevel > 0 {
		args = append(args, filter.GradeLevel)
		conditions = append(conditions, fmt.Sprintf("grade_level = $%d", len(args)))
	}
	if filter.SchoolYear != "" {
		args = append(args, filter.SchoolYear)
		conditions = append(conditions, fmt.Sprintf("school_year = $%d", len(args)))
	}
	if filter.AdviserID != "" {
		args = append(args, filter.AdviserID)
		conditions = append(conditions, fmt.Sprintf("adviser_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM sections%s ORDER BY school_year DESC, grade_level ASC, name ASC LIMIT %d OFFSET %d", sectionColumns, clause, size, offset)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sections"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID returns a section by ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	var section models.Section
	if err := r.db.GetContext(ctx, &section, "SELECT "+sectionColumns+" FROM sections WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListSubjects returns the subject list fixed for the section.
func (r *SectionRepository) ListSubjects(ctx context.Context, sectionID string) ([]models.SectionSubjectAssignment, error) {
	const query = `
SELECT ss.id, ss.section_id, ss.subject_id, ss.teacher_id, ss.created_at,
       s.name AS subject_name, s.code AS subject_code
FROM section_subjects ss
JOIN subjects s ON s.id = ss.subject_id
WHERE ss.section_id = $1
ORDER BY s.name ASC`
	var assignments []models.SectionSubjectAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section subjects: %w", err)
	}
	return assignments, nil
}

// Create inserts a section together with its subject list in a single transaction.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section, subjects []models.SectionSubject) (err error) {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create section: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertSection = `INSERT INTO sections (id, name, grade_level, school_year, adviser_id, track, created_at, updated_at)
VALUES (:id, :name, :grade_level, :school_year, :adviser_id, :track, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertSection, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}

	for _, subject := range subjects {
		payload := subject
		payload.ID = uuid.NewString()
		payload.SectionID = section.ID
		payload.CreatedAt = now
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO section_subjects (id, section_id, subject_id, teacher_id, created_at) VALUES (:id, :section_id, :subject_id, :teacher_id, :created_at)`, &payload); err != nil {
			return fmt.Errorf("insert section subject: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create section: %w", err)
	}
	return nil
}

// SubjectTeacherID returns the teacher assigned to a subject in a section, if any.
func (r *SectionRepository) SubjectTeacherID(ctx context.Context, sectionID, subjectID string) (*string, error) {
	const query = `SELECT teacher_id FROM section_subjects WHERE section_id = $1 AND subject_id = $2 LIMIT 1`
	var teacherID *string
	if err := r.db.GetContext(ctx, &teacherID, query, sectionID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject teacher: %w", err)
	}
	return teacherID, nil
}
