// Package grading holds the grade aggregation, promotion and remedial rules used
// when report cards are displayed or a school year is finalised. Everything here
// is pure arithmetic over already-loaded records.
package grading

import "fmt"

// Quarter is one of the four junior-high grading periods.
type Quarter int

// Grading periods in school-year order.
const (
	FirstQuarter Quarter = iota + 1
	SecondQuarter
	ThirdQuarter
	FourthQuarter
)

// Quarters lists every quarter in order.
var Quarters = []Quarter{FirstQuarter, SecondQuarter, ThirdQuarter, FourthQuarter}

// Valid reports whether q is one of the four quarters.
func (q Quarter) Valid() bool {
	return q >= FirstQuarter && q <= FourthQuarter
}

func (q Quarter) String() string {
	switch q {
	case FirstQuarter:
		return "1st"
	case SecondQuarter:
		return "2nd"
	case ThirdQuarter:
		return "3rd"
	case FourthQuarter:
		return "4th"
	default:
		return fmt.Sprintf("quarter(%d)", int(q))
	}
}

// Semester is one of the two senior-high grading periods.
type Semester int

// Senior-high semesters.
const (
	FirstSemester Semester = iota + 1
	SecondSemester
)

// Valid reports whether s is a known semester.
func (s Semester) Valid() bool {
	return s == FirstSemester || s == SecondSemester
}

// Quarters returns the pair of quarters a semester covers.
func (s Semester) Quarters() (Quarter, Quarter) {
	if s == SecondSemester {
		return ThirdQuarter, FourthQuarter
	}
	return FirstQuarter, SecondQuarter
}

// Intervention is a remedial adjustment recorded for a single quarter.
type Intervention struct {
	Grade   float64  `json:"grade"`
	Used    []string `json:"used"`
	Remarks string   `json:"remarks"`
}

// QuarterGrades carries the plain grade and optional intervention of every quarter.
// A nil entry means nothing was recorded; a zero value is a real grade.
type QuarterGrades struct {
	Grades        [4]*float64
	Interventions [4]*Intervention
}

// Set stores the plain grade for q.
func (g *QuarterGrades) Set(q Quarter, grade float64) {
	if !q.Valid() {
		return
	}
	v := grade
	g.Grades[q-1] = &v
}

// SetIntervention stores the intervention for q, superseding any earlier one.
func (g *QuarterGrades) SetIntervention(q Quarter, in Intervention) {
	if !q.Valid() {
		return
	}
	v := in
	g.Interventions[q-1] = &v
}

// Original returns the plain grade of q, ignoring interventions.
func (g QuarterGrades) Original(q Quarter) *float64 {
	if !q.Valid() {
		return nil
	}
	return g.Grades[q-1]
}

// Intervention returns the intervention of q, if any.
func (g QuarterGrades) Intervention(q Quarter) *Intervention {
	if !q.Valid() {
		return nil
	}
	return g.Interventions[q-1]
}

// Effective returns the grade used in every computation: the intervention grade when
// an intervention exists for q, otherwise the plain grade.
func (g QuarterGrades) Effective(q Quarter) *float64 {
	if !q.Valid() {
		return nil
	}
	if in := g.Interventions[q-1]; in != nil {
		v := in.Grade
		return &v
	}
	return g.Grades[q-1]
}

// HasAny reports whether any quarter carries a grade or an intervention.
func (g QuarterGrades) HasAny() bool {
	for i := range g.Grades {
		if g.Grades[i] != nil || g.Interventions[i] != nil {
			return true
		}
	}
	return false
}
