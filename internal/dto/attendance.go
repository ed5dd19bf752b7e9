package dto

// AttendanceMonth is one month of the attendance table.
type AttendanceMonth struct {
	Month       int `json:"month" validate:"required,min=1,max=12"`
	SchoolDays  int `json:"schoolDays" validate:"gte=0,lte=31"`
	DaysPresent int `json:"daysPresent" validate:"gte=0,ltefield=SchoolDays"`
	DaysAbsent  int `json:"daysAbsent"`
}

// UpsertAttendanceRequest replaces the given months of an enrollment's attendance.
type UpsertAttendanceRequest struct {
	Months []AttendanceMonth `json:"months" validate:"required,min=1,dive"`
}

// AttendanceSummary lists the months in school-year order with totals.
type AttendanceSummary struct {
	EnrollmentID     string            `json:"enrollmentId"`
	Months           []AttendanceMonth `json:"months"`
	TotalSchoolDays  int               `json:"totalSchoolDays"`
	TotalDaysPresent int               `json:"totalDaysPresent"`
	TotalDaysAbsent  int               `json:"totalDaysAbsent"`
}
