package dto

import (
	"time"

	"github.com/noah-isme/sis-records-api/internal/grading"
)

// PromotionSubject is one subject line of a promotion decision.
type PromotionSubject struct {
	SubjectGradeID string   `json:"subjectGradeId"`
	SubjectID      string   `json:"subjectId"`
	SubjectName    string   `json:"subjectName"`
	Average        *float64 `json:"average"`
	ForRemedial    bool     `json:"forRemedial"`
}

// PromotionPreview is the decision computed from the current grades.
type PromotionPreview struct {
	EnrollmentID   string             `json:"enrollmentId"`
	SeniorHigh     bool               `json:"seniorHigh"`
	GeneralAverage *float64           `json:"generalAverage"`
	FailedCount    int                `json:"failedCount"`
	Outcome        grading.Outcome    `json:"outcome"`
	NextStatus     string             `json:"nextStatus"`
	Subjects       []PromotionSubject `json:"subjects"`
}

// PromotionResult is returned once the decision has been committed.
type PromotionResult struct {
	PromotionPreview
	CommittedBy string    `json:"committedBy"`
	CommittedAt time.Time `json:"committedAt"`
}

// RemedialMarkInput is one remedial mark in a batch. A missing grade leaves the record as is.
type RemedialMarkInput struct {
	FinalGradeID  string   `json:"finalGradeId" validate:"required"`
	RemedialGrade *float64 `json:"remedialGrade" validate:"omitempty,gte=0,lte=100"`
}

// SaveRemedialsRequest records remedial class results for one learner.
type SaveRemedialsRequest struct {
	ConductedFrom *time.Time          `json:"conductedFrom"`
	ConductedTo   *time.Time          `json:"conductedTo"`
	Marks         []RemedialMarkInput `json:"marks" validate:"required,min=1,dive"`
}

// RemedialLine reports the recomputed result of one subject.
type RemedialLine struct {
	FinalGradeID    string         `json:"finalGradeId"`
	SubjectName     string         `json:"subjectName"`
	GeneralAverage  float64        `json:"generalAverage"`
	RemedialGrade   float64        `json:"remedialGrade"`
	RecomputedGrade float64        `json:"recomputedGrade"`
	Remark          grading.Remark `json:"remark"`
}

// SaveRemedialsResponse summarises a remedial save.
type SaveRemedialsResponse struct {
	EnrollmentID  string         `json:"enrollmentId"`
	ConductedFrom time.Time      `json:"conductedFrom"`
	ConductedTo   time.Time      `json:"conductedTo"`
	Lines         []RemedialLine `json:"lines"`
	Status        string         `json:"status"`
}
