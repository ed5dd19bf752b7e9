package models

import "time"

// AttendanceRecord stores the monthly attendance tally printed on the SF9.
type AttendanceRecord struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Month        int       `db:"month" json:"month"`
	SchoolDays   int       `db:"school_days" json:"school_days"`
	DaysPresent  int       `db:"days_present" json:"days_present"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DaysAbsent derives the absences for the month.
func (a AttendanceRecord) DaysAbsent() int {
	if a.DaysPresent >= a.SchoolDays {
		return 0
	}
	return a.SchoolDays - a.DaysPresent
}

// SchoolYearMonths lists months in school-year order (June to May).
var SchoolYearMonths = []time.Month{
	time.June, time.July, time.August, time.September, time.October, time.November,
	time.December, time.January, time.February, time.March, time.April, time.May,
}
