package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
	"github.com/noah-isme/sis-records-api/pkg/export"
)

type reportCardEnrollments interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error)
}

type summaryProvider interface {
	Summary(ctx context.Context, enrollmentID string) (*dto.GradeSummary, bool, error)
}

type attendanceLister interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error)
}

type finalGradeLister interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinalGrade, error)
}

type reportCardRenderer interface {
	SF9(cards ...export.ReportCard) ([]byte, error)
	SF10(record export.PermanentRecord) ([]byte, error)
}

// RenderedForm is a generated printable form.
type RenderedForm struct {
	Filename string
	Content  []byte
}

// ReportCardService assembles SF9 progress reports and SF10 permanent records.
type ReportCardService struct {
	enrollments reportCardEnrollments
	students    studentReader
	summaries   summaryProvider
	attendance  attendanceLister
	finals      finalGradeLister
	renderer    reportCardRenderer
	school      export.SchoolInfo
	logger      *zap.Logger
}

// NewReportCardService constructs ReportCardService.
func NewReportCardService(enrollments reportCardEnrollments, students studentReader, summaries summaryProvider, attendance attendanceLister, finals finalGradeLister, renderer reportCardRenderer, school export.SchoolInfo, logger *zap.Logger) *ReportCardService {
	if renderer == nil {
		renderer = export.NewReportCardRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCardService{
		enrollments: enrollments,
		students:    students,
		summaries:   summaries,
		attendance:  attendance,
		finals:      finals,
		renderer:    renderer,
		school:      school,
		logger:      logger,
	}
}

// SF9 renders the progress report card of one enrollment.
func (s *ReportCardService) SF9(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*RenderedForm, error) {
	detail, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := requireAdviserOrAdmin(actor, detail); err != nil {
		return nil, err
	}
	card, err := s.card(ctx, detail)
	if err != nil {
		return nil, err
	}
	content, err := s.renderer.SF9(card)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report card")
	}
	return &RenderedForm{Filename: fmt.Sprintf("sf9_%s_%s.pdf", detail.StudentLRN, detail.SchoolYear), Content: content}, nil
}

// SF10 renders the permanent academic record of a learner across every school year.
func (s *ReportCardService) SF10(ctx context.Context, studentID string) (*RenderedForm, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	history, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment history")
	}

	record := export.PermanentRecord{School: s.school, Learner: learnerInfo(student)}
	for i := range history {
		block, err := s.schoolYearBlock(ctx, &history[i])
		if err != nil {
			return nil, err
		}
		record.Years = append(record.Years, block)
	}
	content, err := s.renderer.SF10(record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render permanent record")
	}
	return &RenderedForm{Filename: fmt.Sprintf("sf10_%s.pdf", student.LRN), Content: content}, nil
}

// SectionCards builds the report card of every non-dropped learner in a section.
func (s *ReportCardService) SectionCards(ctx context.Context, sectionID string) ([]export.ReportCard, error) {
	enrollments, err := s.sectionEnrollments(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	cards := make([]export.ReportCard, 0, len(enrollments))
	for i := range enrollments {
		card, err := s.card(ctx, &enrollments[i])
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// SectionSummaries returns the grade summary of every non-dropped learner in a section.
func (s *ReportCardService) SectionSummaries(ctx context.Context, sectionID string) ([]dto.GradeSummary, error) {
	enrollments, err := s.sectionEnrollments(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	summaries := make([]dto.GradeSummary, 0, len(enrollments))
	for _, e := range enrollments {
		summary, _, err := s.summaries.Summary(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (s *ReportCardService) sectionEnrollments(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	all, err := s.enrollments.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section enrollments")
	}
	out := all[:0]
	for _, e := range all {
		if e.Status != models.EnrollmentStatusDropped {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *ReportCardService) card(ctx context.Context, detail *models.EnrollmentDetail) (export.ReportCard, error) {
	summary, _, err := s.summaries.Summary(ctx, detail.ID)
	if err != nil {
		return export.ReportCard{}, err
	}
	student, err := s.students.FindByID(ctx, detail.StudentID)
	if err != nil {
		return export.ReportCard{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	records, err := s.attendance.ListByEnrollment(ctx, detail.ID)
	if err != nil {
		return export.ReportCard{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	card := export.ReportCard{
		School:         s.school,
		Learner:        learnerInfo(student),
		GradeLevel:     detail.GradeLevel,
		Section:        detail.SectionName,
		SchoolYear:     detail.SchoolYear,
		SeniorHigh:     summary.SeniorHigh,
		Areas:          learningAreas(summary.Subjects),
		GeneralAverage: summary.GeneralAverage,
		GeneralRemark:  remarkText(summary.Remark),
		ActionTaken:    actionTaken(detail.Status),
	}
	for i, sem := range summary.SemesterAverages {
		if i < len(card.SemesterAverages) {
			card.SemesterAverages[i] = sem.Grade
		}
	}
	for _, m := range buildAttendanceSummary(detail.ID, records).Months {
		card.Attendance = append(card.Attendance, export.AttendanceRow{
			Month:       monthLabel(m.Month),
			SchoolDays:  m.SchoolDays,
			DaysPresent: m.DaysPresent,
			DaysAbsent:  m.DaysAbsent,
		})
	}
	return card, nil
}

func (s *ReportCardService) schoolYearBlock(ctx context.Context, detail *models.EnrollmentDetail) (export.SchoolYearBlock, error) {
	summary, _, err := s.summaries.Summary(ctx, detail.ID)
	if err != nil {
		return export.SchoolYearBlock{}, err
	}
	finals, err := s.finals.ListByEnrollment(ctx, detail.ID)
	if err != nil {
		return export.SchoolYearBlock{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load final grades")
	}

	block := export.SchoolYearBlock{
		SchoolYear:     detail.SchoolYear,
		GradeLevel:     detail.GradeLevel,
		Section:        detail.SectionName,
		Areas:          learningAreas(summary.Subjects),
		GeneralAverage: summary.GeneralAverage,
		ActionTaken:    actionTaken(detail.Status),
	}
	for _, f := range finals {
		if f.RemedialGrade == nil || f.RecomputedGrade == nil {
			continue
		}
		if block.RemedialFrom == nil {
			block.RemedialFrom, block.RemedialTo = f.RemedialConductedFrom, f.RemedialConductedTo
		}
		block.Remedials = append(block.Remedials, export.RemedialLine{
			LearningArea: f.SubjectName,
			FinalRating:  f.GeneralAverage,
			RemedialMark: *f.RemedialGrade,
			Recomputed:   *f.RecomputedGrade,
			Remark:       remarkText(remarkOf(f.RecomputedGrade)),
		})
	}
	return block, nil
}

func learningAreas(rows []dto.SubjectGradeRow) []export.LearningArea {
	areas := make([]export.LearningArea, 0, len(rows))
	for _, row := range rows {
		areas = append(areas, learningArea(row, false))
		for _, component := range row.Components {
			areas = append(areas, learningArea(component, true))
		}
	}
	return areas
}

func learningArea(row dto.SubjectGradeRow, component bool) export.LearningArea {
	area := export.LearningArea{
		Name:      row.SubjectName,
		Final:     row.Average,
		Remark:    remarkText(row.Remark),
		Component: component,
	}
	for i, cell := range row.Quarters {
		if i < len(area.Quarters) {
			area.Quarters[i] = cell.Grade
		}
	}
	for i, sem := range row.Semesters {
		if i < len(area.Semesters) {
			area.Semesters[i] = sem.Grade
		}
	}
	return area
}

func learnerInfo(student *models.Student) export.LearnerInfo {
	return export.LearnerInfo{Name: student.FullName, LRN: student.LRN, Sex: student.Sex, BirthDate: student.BirthDate}
}

func remarkText(remark *grading.Remark) string {
	if remark == nil {
		return ""
	}
	return strings.ToUpper(string(*remark))
}

func actionTaken(status models.EnrollmentStatus) string {
	switch status {
	case models.EnrollmentStatusPromoted:
		return "Promoted"
	case models.EnrollmentStatusConditionallyPromoted:
		return "Conditionally Promoted"
	case models.EnrollmentStatusRetained:
		return "Retained"
	case models.EnrollmentStatusGraduated:
		return "Graduated"
	case models.EnrollmentStatusDropped:
		return "Dropped"
	default:
		return ""
	}
}
