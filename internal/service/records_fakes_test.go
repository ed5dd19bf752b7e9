package service

import (
	"context"
	"database/sql"
	"sort"

	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/internal/repository"
)

func ptr(v float64) *float64 { return &v }

func gradeRow(id, enrollmentID, subject string, quarters ...float64) models.SubjectGrade {
	row := models.SubjectGrade{ID: id, EnrollmentID: enrollmentID, SubjectID: "sub-" + id, SubjectName: subject}
	cols := []**float64{&row.FirstQuarter, &row.SecondQuarter, &row.ThirdQuarter, &row.FourthQuarter}
	for i, q := range quarters {
		if i >= len(cols) {
			break
		}
		*cols[i] = ptr(q)
	}
	return row
}

func adminActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

type fakeEnrollmentStore struct {
	details   map[string]*models.EnrollmentDetail
	active    map[string]*models.Enrollment
	enrolled  []string
	added     []string
	removed   []string
	dropped   []string
	enrollErr error
	updateErr error
}

func newFakeEnrollmentStore(details ...models.EnrollmentDetail) *fakeEnrollmentStore {
	store := &fakeEnrollmentStore{details: map[string]*models.EnrollmentDetail{}, active: map[string]*models.Enrollment{}}
	for i := range details {
		d := details[i]
		store.details[d.ID] = &d
	}
	return store
}

func (f *fakeEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	out := make([]models.EnrollmentDetail, 0, len(f.details))
	for _, d := range f.details {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (f *fakeEnrollmentStore) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (f *fakeEnrollmentStore) ListBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, d := range f.details {
		if d.SectionID == sectionID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out, nil
}

func (f *fakeEnrollmentStore) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, d := range f.details {
		if d.StudentID == studentID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GradeLevel < out[j].GradeLevel })
	return out, nil
}

func (f *fakeEnrollmentStore) FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	return f.active[studentID], nil
}

func (f *fakeEnrollmentStore) Enroll(ctx context.Context, enrollment *models.Enrollment, subjectIDs []string) error {
	if f.enrollErr != nil {
		return f.enrollErr
	}
	enrollment.ID = "enr-new"
	enrollment.Status = models.EnrollmentStatusEnrolled
	f.enrolled = append(f.enrolled, subjectIDs...)
	f.details[enrollment.ID] = &models.EnrollmentDetail{Enrollment: *enrollment}
	return nil
}

func (f *fakeEnrollmentStore) UpdateSubjects(ctx context.Context, enrollment *models.Enrollment, add, remove []string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.added = append(f.added, add...)
	f.removed = append(f.removed, remove...)
	return nil
}

func (f *fakeEnrollmentStore) Drop(ctx context.Context, enrollment *models.Enrollment) error {
	f.dropped = append(f.dropped, enrollment.ID)
	f.details[enrollment.ID].Status = models.EnrollmentStatusDropped
	return nil
}

type fakeGradeStore struct {
	rows          map[string]*models.SubjectGrade
	order         []string
	interventions []models.GradeIntervention
	writes        int
}

func newFakeGradeStore(rows ...models.SubjectGrade) *fakeGradeStore {
	store := &fakeGradeStore{rows: map[string]*models.SubjectGrade{}}
	for i := range rows {
		r := rows[i]
		store.rows[r.ID] = &r
		store.order = append(store.order, r.ID)
	}
	return store
}

func (f *fakeGradeStore) withInterventions(row *models.SubjectGrade) models.SubjectGrade {
	cp := *row
	latest := map[grading.Quarter]*models.GradeIntervention{}
	for i := range f.interventions {
		in := f.interventions[i]
		if in.SubjectGradeID != row.ID {
			continue
		}
		q := grading.Quarter(in.Quarter)
		if cur := latest[q]; cur == nil || !in.RecordedAt.Before(cur.RecordedAt) {
			latest[q] = &in
		}
	}
	if len(latest) > 0 {
		cp.Interventions = latest
	}
	return cp
}

func (f *fakeGradeStore) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubjectGrade, error) {
	var out []models.SubjectGrade
	for _, id := range f.order {
		if row := f.rows[id]; row.EnrollmentID == enrollmentID {
			out = append(out, f.withInterventions(row))
		}
	}
	return out, nil
}

func (f *fakeGradeStore) FindByID(ctx context.Context, id string) (*models.SubjectGrade, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := f.withInterventions(row)
	return &cp, nil
}

func (f *fakeGradeStore) ListInterventions(ctx context.Context, subjectGradeID string) ([]models.GradeIntervention, error) {
	var out []models.GradeIntervention
	for _, in := range f.interventions {
		if in.SubjectGradeID == subjectGradeID {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (f *fakeGradeStore) SetQuarter(ctx context.Context, id string, quarter grading.Quarter, grade *float64) error {
	row, ok := f.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.writes++
	switch quarter {
	case grading.FirstQuarter:
		row.FirstQuarter = grade
	case grading.SecondQuarter:
		row.SecondQuarter = grade
	case grading.ThirdQuarter:
		row.ThirdQuarter = grade
	case grading.FourthQuarter:
		row.FourthQuarter = grade
	}
	return nil
}

func (f *fakeGradeStore) AppendIntervention(ctx context.Context, intervention *models.GradeIntervention) error {
	intervention.ID = "int-" + intervention.SubjectGradeID
	f.interventions = append(f.interventions, *intervention)
	f.writes++
	return nil
}

type fakeFinalStore struct {
	finals    []models.FinalGrade
	promotion *repository.PromotionCommit
	remedial  *repository.RemedialCommit
	commitErr error
}

func (f *fakeFinalStore) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.FinalGrade, error) {
	var out []models.FinalGrade
	for _, fg := range f.finals {
		if fg.EnrollmentID == enrollmentID {
			out = append(out, fg)
		}
	}
	return out, nil
}

func (f *fakeFinalStore) ExistsForSubjectGrade(ctx context.Context, subjectGradeID string) (bool, error) {
	for _, fg := range f.finals {
		if fg.SubjectGradeID == subjectGradeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFinalStore) CommitPromotion(ctx context.Context, commit repository.PromotionCommit) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.promotion = &commit
	return nil
}

func (f *fakeFinalStore) SaveRemedials(ctx context.Context, commit repository.RemedialCommit) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.remedial = &commit
	return nil
}

type fakeTeacherLookup map[string]string

func (f fakeTeacherLookup) SubjectTeacherID(ctx context.Context, sectionID, subjectID string) (*string, error) {
	if id, ok := f[subjectID]; ok {
		return &id, nil
	}
	return nil, nil
}

type fakeSubjectLookup map[string]models.Subject

func (f fakeSubjectLookup) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

type fakeSectionReader struct {
	sections map[string]models.Section
	subjects map[string][]models.SectionSubjectAssignment
}

func (f *fakeSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	s, ok := f.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeSectionReader) ListSubjects(ctx context.Context, sectionID string) ([]models.SectionSubjectAssignment, error) {
	return f.subjects[sectionID], nil
}
