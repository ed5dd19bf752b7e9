package grading

import "math"

// PassingThreshold is the highest failing average. Passing requires a strictly greater value.
const PassingThreshold = 74.0

// Remark is the pass/fail classification printed on report cards.
type Remark string

// Remarks.
const (
	Passed Remark = "Passed"
	Failed Remark = "Failed"
)

// Classify applies the pass/fail threshold to any average.
func Classify(avg float64) Remark {
	if avg > PassingThreshold {
		return Passed
	}
	return Failed
}

// ForRemedial reports whether a subject average must go through a remedial class.
func ForRemedial(avg float64) bool {
	return Classify(avg) == Failed
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round0 rounds to the nearest whole number, halves away from zero.
func Round0(v float64) float64 {
	return math.Round(v)
}

// QuarterlyAverage is the mean of every quarter that has an effective grade, rounded to
// two decimals. Quarters without a grade are left out of both sum and count.
func QuarterlyAverage(g QuarterGrades) *float64 {
	sum, n := 0.0, 0
	for _, q := range Quarters {
		if v := g.Effective(q); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := Round2(sum / float64(n))
	return &avg
}

// SubjectRecord is one subject a student carries within a school year.
type SubjectRecord struct {
	SubjectID string
	Name      string
	Kind      SubjectKind
	Grades    QuarterGrades
}

// Average returns the subject's quarterly average.
func (r SubjectRecord) Average() *float64 {
	return QuarterlyAverage(r.Grades)
}

// GeneralAverage is the mean of every subject's quarterly average, rounded to two decimals.
// Subjects without an average are skipped; nil is returned when none has one.
func GeneralAverage(records []SubjectRecord) *float64 {
	sum, n := 0.0, 0
	for _, r := range records {
		if avg := r.Average(); avg != nil {
			sum += *avg
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := Round2(sum / float64(n))
	return &avg
}

// CountFailed counts subjects whose average does not pass. Subjects without an
// average are not counted.
func CountFailed(records []SubjectRecord) int {
	failed := 0
	for _, r := range records {
		if avg := r.Average(); avg != nil && Classify(*avg) == Failed {
			failed++
		}
	}
	return failed
}
