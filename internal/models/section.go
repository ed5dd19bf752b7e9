package models

import "time"

// SeniorHighStartLevel is the first senior-high grade level.
const SeniorHighStartLevel = 11

// FinalGradeLevel is the last grade level; promotion out of it is graduation.
const FinalGradeLevel = 12

// Section is a grade-level grouping for one school year, owned by an adviser.
type Section struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	GradeLevel int       `db:"grade_level" json:"grade_level"`
	SchoolYear string    `db:"school_year" json:"school_year"`
	AdviserID  string    `db:"adviser_id" json:"adviser_id"`
	Track      *string   `db:"track" json:"track,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// IsSeniorHigh reports whether the section belongs to grades 11-12.
func (s Section) IsSeniorHigh() bool {
	return s.GradeLevel >= SeniorHighStartLevel
}

// SectionSubject maps a subject onto a section with an optional subject teacher.
type SectionSubject struct {
	ID        string    `db:"id" json:"id"`
	SectionID string    `db:"section_id" json:"section_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SectionSubjectAssignment is a view that includes subject info for responses.
type SectionSubjectAssignment struct {
	SectionSubject
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
}

// SectionDetail extends Section with its fixed subject list.
type SectionDetail struct {
	Section
	Subjects []SectionSubjectAssignment `json:"subjects"`
}

// SectionFilter defines filter criteria for listing sections.
type SectionFilter struct {
	GradeLevel int
	SchoolYear string
	AdviserID  string
	Search     string
	Page       int
	PageSize   int
}
