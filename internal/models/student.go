package models

import "time"

// Student represents a learner registered in the school.
type Student struct {
	ID        string           `db:"id" json:"id"`
	LRN       string           `db:"lrn" json:"lrn"`
	FullName  string           `db:"full_name" json:"full_name"`
	Sex       string           `db:"sex" json:"sex"`
	BirthDate *time.Time       `db:"birth_date" json:"birth_date,omitempty"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
