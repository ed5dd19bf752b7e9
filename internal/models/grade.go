package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/sis-records-api/internal/grading"
)

// SubjectGrade is the per-quarter grade record of one student in one subject for a school year.
type SubjectGrade struct {
	ID            string    `db:"id" json:"id"`
	EnrollmentID  string    `db:"enrollment_id" json:"enrollment_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	SchoolYear    string    `db:"school_year" json:"school_year"`
	FirstQuarter  *float64  `db:"first_quarter" json:"first_quarter,omitempty"`
	SecondQuarter *float64  `db:"second_quarter" json:"second_quarter,omitempty"`
	ThirdQuarter  *float64  `db:"third_quarter" json:"third_quarter,omitempty"`
	FourthQuarter *float64  `db:"fourth_quarter" json:"fourth_quarter,omitempty"`
	SubjectName   string    `db:"subject_name" json:"subject_name"`
	SubjectCode   string    `db:"subject_code" json:"subject_code"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	// Interventions holds the latest intervention per quarter.
	Interventions map[grading.Quarter]*GradeIntervention `db:"-" json:"interventions,omitempty"`
}

// QuarterColumn returns the column storing the plain grade of q.
func QuarterColumn(q grading.Quarter) (string, bool) {
	switch q {
	case grading.FirstQuarter:
		return "first_quarter", true
	case grading.SecondQuarter:
		return "second_quarter", true
	case grading.ThirdQuarter:
		return "third_quarter", true
	case grading.FourthQuarter:
		return "fourth_quarter", true
	default:
		return "", false
	}
}

// Quarters converts the record into grading input.
func (g SubjectGrade) Quarters() grading.QuarterGrades {
	var out grading.QuarterGrades
	out.Grades = [4]*float64{g.FirstQuarter, g.SecondQuarter, g.ThirdQuarter, g.FourthQuarter}
	for q, in := range g.Interventions {
		if in == nil {
			continue
		}
		out.SetIntervention(q, in.Intervention())
	}
	return out
}

// Record converts the row into a grading subject record.
func (g SubjectGrade) Record() grading.SubjectRecord {
	return grading.SubjectRecord{
		SubjectID: g.SubjectID,
		Name:      g.SubjectName,
		Kind:      grading.ClassifySubject(g.SubjectName),
		Grades:    g.Quarters(),
	}
}

// HasEntries reports whether any grade or intervention has been recorded.
func (g SubjectGrade) HasEntries() bool {
	return g.Quarters().HasAny()
}

// StringList is a JSONB backed list of strings.
type StringList []string

// Value marshals the list to JSON for persistence.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB into the list.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StringList", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// GradeIntervention is an append-only intervention entry for a quarter. The newest entry
// for a quarter supersedes older ones.
type GradeIntervention struct {
	ID             string     `db:"id" json:"id"`
	SubjectGradeID string     `db:"subject_grade_id" json:"subject_grade_id"`
	Quarter        int        `db:"quarter" json:"quarter"`
	Grade          float64    `db:"grade" json:"grade"`
	Used           StringList `db:"used" json:"used"`
	Remarks        string     `db:"remarks" json:"remarks"`
	RecordedBy     string     `db:"recorded_by" json:"recorded_by"`
	RecordedAt     time.Time  `db:"recorded_at" json:"recorded_at"`
}

// Intervention converts the row into grading input.
func (i GradeIntervention) Intervention() grading.Intervention {
	used := make([]string, len(i.Used))
	copy(used, i.Used)
	return grading.Intervention{Grade: i.Grade, Used: used, Remarks: i.Remarks}
}

// FinalGrade is created per subject when a school year is finalised at promotion time.
type FinalGrade struct {
	ID                    string     `db:"id" json:"id"`
	EnrollmentID          string     `db:"enrollment_id" json:"enrollment_id"`
	SubjectGradeID        string     `db:"subject_grade_id" json:"subject_grade_id"`
	SubjectID             string     `db:"subject_id" json:"subject_id"`
	GeneralAverage        float64    `db:"general_average" json:"general_average"`
	ForRemedial           bool       `db:"for_remedial" json:"for_remedial"`
	RemedialGrade         *float64   `db:"remedial_grade" json:"remedial_grade,omitempty"`
	RecomputedGrade       *float64   `db:"recomputed_grade" json:"recomputed_grade,omitempty"`
	RemedialRemark        *string    `db:"remedial_remark" json:"remedial_remark,omitempty"`
	RemedialConductedFrom *time.Time `db:"remedial_conducted_from" json:"remedial_conducted_from,omitempty"`
	RemedialConductedTo   *time.Time `db:"remedial_conducted_to" json:"remedial_conducted_to,omitempty"`
	SubjectName           string     `db:"subject_name" json:"subject_name"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Passed reports whether the subject is cleared, taking a recomputed remedial grade into account.
func (f FinalGrade) Passed() bool {
	if f.RecomputedGrade != nil {
		return grading.Classify(*f.RecomputedGrade) == grading.Passed
	}
	return !f.ForRemedial
}

// RemedialMark is a recomputed final grade ready to persist.
type RemedialMark struct {
	FinalGradeID    string
	RemedialGrade   float64
	RecomputedGrade float64
	Remark          grading.Remark
}
