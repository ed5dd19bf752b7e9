package models

// UserRole represents the roles issued by the identity provider.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleAdviser UserRole = "ADVISER"
	RoleTeacher UserRole = "TEACHER"
)

// Valid reports whether the role is one this service authorises.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleAdviser, RoleTeacher:
		return true
	default:
		return false
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
