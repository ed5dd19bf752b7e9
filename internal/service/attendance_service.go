package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type attendanceRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error)
	Upsert(ctx context.Context, enrollmentID string, records []models.AttendanceRecord) error
}

// AttendanceService maintains the monthly attendance table printed on report cards.
type AttendanceService struct {
	repo        attendanceRepository
	enrollments enrollmentDetailReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, enrollments enrollmentDetailReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// Summary returns the twelve school-year months with totals. Months without a record are zero.
func (s *AttendanceService) Summary(ctx context.Context, enrollmentID string) (*dto.AttendanceSummary, error) {
	if _, err := loadEnrollment(ctx, s.enrollments, enrollmentID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return buildAttendanceSummary(enrollmentID, records), nil
}

// Upsert replaces the given months of an enrollment's attendance.
func (s *AttendanceService) Upsert(ctx context.Context, enrollmentID string, req dto.UpsertAttendanceRequest, actor *models.JWTClaims) (*dto.AttendanceSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	detail, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := requireAdviserOrAdmin(actor, detail); err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(req.Months))
	records := make([]models.AttendanceRecord, 0, len(req.Months))
	for _, m := range req.Months {
		if seen[m.Month] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("month %d given twice", m.Month))
		}
		seen[m.Month] = true
		records = append(records, models.AttendanceRecord{
			EnrollmentID: enrollmentID,
			Month:        m.Month,
			SchoolDays:   m.SchoolDays,
			DaysPresent:  m.DaysPresent,
		})
	}
	if err := s.repo.Upsert(ctx, enrollmentID, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	s.logger.Info("attendance saved", zap.String("enrollment_id", enrollmentID), zap.Int("months", len(records)))
	return s.Summary(ctx, enrollmentID)
}

func buildAttendanceSummary(enrollmentID string, records []models.AttendanceRecord) *dto.AttendanceSummary {
	byMonth := make(map[int]models.AttendanceRecord, len(records))
	for _, r := range records {
		byMonth[r.Month] = r
	}
	summary := &dto.AttendanceSummary{EnrollmentID: enrollmentID, Months: make([]dto.AttendanceMonth, 0, len(models.SchoolYearMonths))}
	for _, month := range models.SchoolYearMonths {
		record := byMonth[int(month)]
		row := dto.AttendanceMonth{
			Month:       int(month),
			SchoolDays:  record.SchoolDays,
			DaysPresent: record.DaysPresent,
			DaysAbsent:  record.DaysAbsent(),
		}
		summary.Months = append(summary.Months, row)
		summary.TotalSchoolDays += row.SchoolDays
		summary.TotalDaysPresent += row.DaysPresent
		summary.TotalDaysAbsent += row.DaysAbsent
	}
	return summary
}

// monthLabel is the short month name used on printed forms.
func monthLabel(month int) string {
	return time.Month(month).String()[:3]
}
