package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment and the learner's current standing.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled              EnrollmentStatus = "enrolled"
	EnrollmentStatusDropped               EnrollmentStatus = "dropped"
	EnrollmentStatusPromoted              EnrollmentStatus = "promoted"
	EnrollmentStatusConditionallyPromoted EnrollmentStatus = "conditionally-promoted"
	EnrollmentStatusRetained              EnrollmentStatus = "retained"
	EnrollmentStatusNotEnrolled           EnrollmentStatus = "not-enrolled"
	EnrollmentStatusGraduated             EnrollmentStatus = "graduated"
)

// Valid reports whether the status is known.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusEnrolled, EnrollmentStatusDropped, EnrollmentStatusPromoted,
		EnrollmentStatusConditionallyPromoted, EnrollmentStatusRetained,
		EnrollmentStatusNotEnrolled, EnrollmentStatusGraduated:
		return true
	default:
		return false
	}
}

// Enrollment captures a student's registration to a section for a school year.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SectionID  string           `db:"section_id" json:"section_id"`
	SchoolYear string           `db:"school_year" json:"school_year"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and section info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	StudentLRN  string `db:"student_lrn" json:"student_lrn"`
	SectionName string `db:"section_name" json:"section_name"`
	GradeLevel  int    `db:"grade_level" json:"grade_level"`
	AdviserID   string `db:"adviser_id" json:"adviser_id"`
}

// IsSeniorHigh reports whether the enrollment is in grades 11-12.
func (d EnrollmentDetail) IsSeniorHigh() bool {
	return d.GradeLevel >= SeniorHighStartLevel
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  string
	SectionID  string
	SchoolYear string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
}
