package service

import (
	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/grading"
	"github.com/noah-isme/sis-records-api/internal/models"
)

// BuildGradeSummary computes the grade sheet of an enrollment from its subject grade rows.
// Junior-high summaries fold a complete MAPEH group into one row with nested components;
// senior-high summaries add semester grades and semester general averages instead.
func BuildGradeSummary(detail *models.EnrollmentDetail, grades []models.SubjectGrade, finals []models.FinalGrade) *dto.GradeSummary {
	seniorHigh := detail.IsSeniorHigh()
	summary := &dto.GradeSummary{
		EnrollmentID: detail.ID,
		StudentID:    detail.StudentID,
		StudentName:  detail.StudentName,
		StudentLRN:   detail.StudentLRN,
		SectionName:  detail.SectionName,
		GradeLevel:   detail.GradeLevel,
		SchoolYear:   detail.SchoolYear,
		SeniorHigh:   seniorHigh,
		Status:       string(detail.Status),
		Finalized:    len(finals) > 0,
		Subjects:     make([]dto.SubjectGradeRow, 0, len(grades)),
	}

	finalBySubject := make(map[string]*models.FinalGrade, len(finals))
	for i := range finals {
		finalBySubject[finals[i].SubjectID] = &finals[i]
	}

	records := make([]grading.SubjectRecord, len(grades))
	for i := range grades {
		records[i] = grades[i].Record()
	}

	if seniorHigh {
		for i := range grades {
			summary.Subjects = append(summary.Subjects, subjectRow(grades[i], finalBySubject[grades[i].SubjectID], true))
		}
		summary.FailedCount = grading.CountFailed(records)
		summary.GeneralAverage = grading.GeneralAverage(records)
		for _, sem := range []grading.Semester{grading.FirstSemester, grading.SecondSemester} {
			avg := grading.SemesterGeneralAverage(records, sem)
			summary.SemesterAverages = append(summary.SemesterAverages, dto.SemesterCell{Semester: int(sem), Grade: avg, Remark: remarkOf(avg)})
		}
	} else {
		group := mapehGroup(records)
		for i := range grades {
			if _, inGroup := group[i]; inGroup {
				if i == firstIndex(group) {
					summary.Subjects = append(summary.Subjects, mapehRow(grades, records, group, finalBySubject))
				}
				continue
			}
			summary.Subjects = append(summary.Subjects, subjectRow(grades[i], finalBySubject[grades[i].SubjectID], false))
		}
		folded := grading.FoldMAPEH(records)
		summary.FailedCount = grading.CountFailed(folded)
		summary.GeneralAverage = grading.GeneralAverage(folded)
	}
	summary.Remark = remarkOf(summary.GeneralAverage)
	return summary
}

// mapehGroup returns the record indexes of a complete MAPEH component group, or nil.
func mapehGroup(records []grading.SubjectRecord) map[int]grading.Component {
	group := make(map[int]grading.Component, len(grading.Components))
	seen := make(map[grading.Component]bool, len(grading.Components))
	for i, r := range records {
		c, ok := grading.ComponentOf(r)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		group[i] = c
	}
	if len(group) != len(grading.Components) {
		return nil
	}
	return group
}

func firstIndex(group map[int]grading.Component) int {
	first := -1
	for i := range group {
		if first < 0 || i < first {
			first = i
		}
	}
	return first
}

func mapehRow(grades []models.SubjectGrade, records []grading.SubjectRecord, group map[int]grading.Component, finals map[string]*models.FinalGrade) dto.SubjectGradeRow {
	components := make(map[grading.Component]grading.QuarterGrades, len(group))
	byComponent := make(map[grading.Component]int, len(group))
	for i, c := range group {
		components[c] = records[i].Grades
		byComponent[c] = i
	}
	composite, _ := grading.MAPEHComposite(components)

	row := dto.SubjectGradeRow{SubjectName: grading.MAPEHName, Quarters: make([]dto.QuarterCell, 0, len(grading.Quarters))}
	for _, q := range grading.Quarters {
		row.Quarters = append(row.Quarters, dto.QuarterCell{Quarter: int(q), Label: q.String(), Grade: composite.Effective(q)})
	}
	row.Average = grading.QuarterlyAverage(composite)
	row.Remark = remarkOf(row.Average)
	for _, c := range grading.Components {
		g := grades[byComponent[c]]
		row.Components = append(row.Components, subjectRow(g, finals[g.SubjectID], false))
	}
	return row
}

func subjectRow(grade models.SubjectGrade, final *models.FinalGrade, seniorHigh bool) dto.SubjectGradeRow {
	quarters := grade.Quarters()
	row := dto.SubjectGradeRow{
		RecordID:    grade.ID,
		SubjectID:   grade.SubjectID,
		SubjectName: grade.SubjectName,
		SubjectCode: grade.SubjectCode,
		Quarters:    quarterCells(grade, quarters),
		Average:     grading.QuarterlyAverage(quarters),
	}
	row.Remark = remarkOf(row.Average)
	if seniorHigh {
		for _, sem := range []grading.Semester{grading.FirstSemester, grading.SecondSemester} {
			g := grading.SemesterGrade(quarters, sem)
			row.Semesters = append(row.Semesters, dto.SemesterCell{Semester: int(sem), Grade: g, Remark: remarkOf(g)})
		}
	}
	if final != nil {
		row.FinalGrade = finalGradeView(final)
	}
	return row
}

func quarterCells(grade models.SubjectGrade, quarters grading.QuarterGrades) []dto.QuarterCell {
	cells := make([]dto.QuarterCell, 0, len(grading.Quarters))
	for _, q := range grading.Quarters {
		cell := dto.QuarterCell{Quarter: int(q), Label: q.String(), Grade: quarters.Effective(q)}
		if in := grade.Interventions[q]; in != nil {
			cell.Original = quarters.Original(q)
			cell.Intervention = interventionView(*in)
		}
		cells = append(cells, cell)
	}
	return cells
}

func interventionView(in models.GradeIntervention) *dto.InterventionView {
	used := make([]string, len(in.Used))
	copy(used, in.Used)
	return &dto.InterventionView{
		Grade:      in.Grade,
		Used:       used,
		Remarks:    in.Remarks,
		RecordedBy: in.RecordedBy,
		RecordedAt: in.RecordedAt,
	}
}

func finalGradeView(final *models.FinalGrade) *dto.FinalGradeView {
	view := &dto.FinalGradeView{ID: final.ID, GeneralAverage: final.GeneralAverage, ForRemedial: final.ForRemedial}
	if final.RemedialGrade != nil && final.RecomputedGrade != nil {
		remedial := &dto.RemedialView{
			RemedialGrade:   *final.RemedialGrade,
			RecomputedGrade: *final.RecomputedGrade,
			Remark:          grading.Classify(*final.RecomputedGrade),
			ConductedFrom:   final.RemedialConductedFrom,
			ConductedTo:     final.RemedialConductedTo,
		}
		view.Remedial = remedial
	}
	return view
}

func remarkOf(avg *float64) *grading.Remark {
	if avg == nil {
		return nil
	}
	r := grading.Classify(*avg)
	return &r
}
