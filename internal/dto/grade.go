package dto

import (
	"time"

	"github.com/noah-isme/sis-records-api/internal/grading"
)

// InterventionView describes the intervention currently in effect for a quarter.
type InterventionView struct {
	Grade      float64   `json:"grade"`
	Used       []string  `json:"used"`
	Remarks    string    `json:"remarks"`
	RecordedBy string    `json:"recordedBy,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// QuarterCell is one quarter of a subject row. Grade is the effective grade; Original is the
// plain grade kept for display when an intervention overrides it.
type QuarterCell struct {
	Quarter      int               `json:"quarter"`
	Label        string            `json:"label"`
	Grade        *float64          `json:"grade"`
	Original     *float64          `json:"original,omitempty"`
	Intervention *InterventionView `json:"intervention,omitempty"`
}

// SemesterCell is a senior-high semester final grade or average.
type SemesterCell struct {
	Semester int             `json:"semester"`
	Grade    *float64        `json:"grade"`
	Remark   *grading.Remark `json:"remark,omitempty"`
}

// RemedialView reports a remedial result attached to a finalised subject.
type RemedialView struct {
	RemedialGrade   float64        `json:"remedialGrade"`
	RecomputedGrade float64        `json:"recomputedGrade"`
	Remark          grading.Remark `json:"remark"`
	ConductedFrom   *time.Time     `json:"conductedFrom,omitempty"`
	ConductedTo     *time.Time     `json:"conductedTo,omitempty"`
}

// SubjectGradeRow is one learning area on the summary.
type SubjectGradeRow struct {
	RecordID    string            `json:"recordId,omitempty"`
	SubjectID   string            `json:"subjectId,omitempty"`
	SubjectName string            `json:"subjectName"`
	SubjectCode string            `json:"subjectCode,omitempty"`
	Quarters    []QuarterCell     `json:"quarters"`
	Average     *float64          `json:"average"`
	Remark      *grading.Remark   `json:"remark,omitempty"`
	Semesters   []SemesterCell    `json:"semesters,omitempty"`
	Components  []SubjectGradeRow `json:"components,omitempty"`
	FinalGrade  *FinalGradeView   `json:"finalGrade,omitempty"`
}

// FinalGradeView is the persisted final grade of a subject.
type FinalGradeView struct {
	ID             string        `json:"id"`
	GeneralAverage float64       `json:"generalAverage"`
	ForRemedial    bool          `json:"forRemedial"`
	Remedial       *RemedialView `json:"remedial,omitempty"`
}

// GradeSummary is the computed grade sheet of one enrollment.
type GradeSummary struct {
	EnrollmentID     string            `json:"enrollmentId"`
	StudentID        string            `json:"studentId"`
	StudentName      string            `json:"studentName"`
	StudentLRN       string            `json:"studentLrn"`
	SectionName      string            `json:"sectionName"`
	GradeLevel       int               `json:"gradeLevel"`
	SchoolYear       string            `json:"schoolYear"`
	SeniorHigh       bool              `json:"seniorHigh"`
	Status           string            `json:"status"`
	Subjects         []SubjectGradeRow `json:"subjects"`
	GeneralAverage   *float64          `json:"generalAverage"`
	Remark           *grading.Remark   `json:"remark,omitempty"`
	SemesterAverages []SemesterCell    `json:"semesterAverages,omitempty"`
	FailedCount      int               `json:"failedCount"`
	Finalized        bool              `json:"finalized"`
}

// RecordQuarterGradeRequest sets the plain grade of one quarter. A null grade clears it.
type RecordQuarterGradeRequest struct {
	Grade *float64 `json:"grade" validate:"omitempty,gte=0,lte=100"`
}

// RecordComponentScoresRequest carries component percentage scores for a quarter.
type RecordComponentScoresRequest struct {
	Scores map[string]float64 `json:"scores" validate:"required,min=1,dive,gte=0,lte=100"`
}

// AddInterventionRequest appends an intervention to a quarter.
type AddInterventionRequest struct {
	Quarter int      `json:"quarter" validate:"required,min=1,max=4"`
	Grade   *float64 `json:"grade" validate:"required,gte=0,lte=100"`
	Used    []string `json:"used" validate:"required,min=1,dive,required"`
	Remarks string   `json:"remarks"`
}

// SubjectGradeResponse is returned after a grade write.
type SubjectGradeResponse struct {
	RecordID     string             `json:"recordId"`
	EnrollmentID string             `json:"enrollmentId"`
	SubjectID    string             `json:"subjectId"`
	SubjectName  string             `json:"subjectName"`
	Quarters     []QuarterCell      `json:"quarters"`
	Average      *float64           `json:"average"`
	Remark       *grading.Remark    `json:"remark,omitempty"`
	History      []InterventionView `json:"interventionHistory,omitempty"`
}
