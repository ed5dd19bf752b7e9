package grading

// SemesterGrade is the senior-high final grade of a subject for one semester: the rounded
// mean of the semester's two effective quarter grades. When only one quarter has a grade it
// stands alone; nil when neither has one.
func SemesterGrade(g QuarterGrades, s Semester) *float64 {
	first, second := s.Quarters()
	sum, n := 0.0, 0
	for _, q := range []Quarter{first, second} {
		if v := g.Effective(q); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	v := Round0(sum / float64(n))
	return &v
}

// SemesterGeneralAverage averages the semester final grade of every subject taken that
// semester and rounds to a whole number. MAPEH grouping does not apply in senior high.
func SemesterGeneralAverage(records []SubjectRecord, s Semester) *float64 {
	sum, n := 0.0, 0
	for _, r := range records {
		if v := SemesterGrade(r.Grades, s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	v := Round0(sum / float64(n))
	return &v
}
