package service

import (
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

// requireAdviserOrAdmin allows the section adviser and administrators.
func requireAdviserOrAdmin(actor *models.JWTClaims, enrollment *models.EnrollmentDetail) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == models.RoleAdviser && enrollment != nil && enrollment.AdviserID == actor.UserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the section adviser or an administrator may do this")
}

// requireGradeEditor allows administrators, the section adviser and the subject teacher.
func requireGradeEditor(actor *models.JWTClaims, enrollment *models.EnrollmentDetail, subjectTeacherID *string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.IsAdmin() {
		return nil
	}
	if enrollment != nil && enrollment.AdviserID == actor.UserID {
		return nil
	}
	if subjectTeacherID != nil && *subjectTeacherID == actor.UserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not assigned to this subject")
}

func pagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
