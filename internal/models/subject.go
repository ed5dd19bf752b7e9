package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/noah-isme/sis-records-api/internal/grading"
)

// SubjectCategory groups subjects the way report cards list them.
type SubjectCategory string

const (
	SubjectCategoryRegular     SubjectCategory = "REGULAR"
	SubjectCategoryCore        SubjectCategory = "CORE"
	SubjectCategoryApplied     SubjectCategory = "APPLIED"
	SubjectCategorySpecialized SubjectCategory = "SPECIALIZED"
)

// Valid reports whether the category is supported.
func (c SubjectCategory) Valid() bool {
	switch c {
	case SubjectCategoryRegular, SubjectCategoryCore, SubjectCategoryApplied, SubjectCategorySpecialized:
		return true
	default:
		return false
	}
}

// Subject represents a learning area.
type Subject struct {
	ID        string          `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	Name      string          `db:"name" json:"name"`
	Category  SubjectCategory `db:"category" json:"category"`
	Scheme    GradingScheme   `db:"weight_scheme" json:"weight_scheme"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Category SubjectCategory
	Search   string
	Page     int
	PageSize int
}

// GradingScheme stores a grade-weight variant as tagged JSONB.
type GradingScheme struct {
	grading.WeightScheme
}

// MarshalJSON writes the tagged variant.
func (s GradingScheme) MarshalJSON() ([]byte, error) {
	return grading.EncodeScheme(s.WeightScheme)
}

// UnmarshalJSON reads a tagged variant.
func (s *GradingScheme) UnmarshalJSON(data []byte) error {
	scheme, err := grading.DecodeScheme(data)
	if err != nil {
		return err
	}
	s.WeightScheme = scheme
	return nil
}

// Value marshals the scheme for persistence.
func (s GradingScheme) Value() (driver.Value, error) {
	if s.WeightScheme == nil {
		return nil, nil
	}
	data, err := grading.EncodeScheme(s.WeightScheme)
	if err != nil {
		return nil, fmt.Errorf("marshal weight scheme: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB into the scheme.
func (s *GradingScheme) Scan(value interface{}) error {
	if value == nil {
		s.WeightScheme = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for GradingScheme", value)
	}
	return s.UnmarshalJSON(data)
}
