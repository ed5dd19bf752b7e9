package grading

// RemedialResult is the recomputed final grade after a remedial class.
type RemedialResult struct {
	FinalGrade float64 `json:"final_grade"`
	Remark     Remark  `json:"remark"`
}

// Recompute averages the original subject average with the remedial mark and rounds to a
// whole number. It returns nil when no remedial mark was entered, leaving the original
// record as it stands.
func Recompute(generalAverage float64, remedialGrade *float64) *RemedialResult {
	if remedialGrade == nil {
		return nil
	}
	final := Round0((generalAverage + *remedialGrade) / 2)
	return &RemedialResult{FinalGrade: final, Remark: Classify(final)}
}
