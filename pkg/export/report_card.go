package export

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// SchoolInfo is the school header printed on every form.
type SchoolInfo struct {
	Name     string
	ID       string
	District string
	Division string
	Region   string
}

// LearnerInfo identifies the learner on a form.
type LearnerInfo struct {
	Name      string
	LRN       string
	Sex       string
	BirthDate *time.Time
}

// LearningArea is one row of the learning-areas table. Component rows belong to the MAPEH
// group and are printed indented under it.
type LearningArea struct {
	Name      string
	Quarters  [4]*float64
	Semesters [2]*float64
	Final     *float64
	Remark    string
	Component bool
}

// AttendanceRow is one month of the attendance table.
type AttendanceRow struct {
	Month       string
	SchoolDays  int
	DaysPresent int
	DaysAbsent  int
}

// ReportCard is the content of one learner's progress report (SF9).
type ReportCard struct {
	School           SchoolInfo
	Learner          LearnerInfo
	GradeLevel       int
	Section          string
	SchoolYear       string
	SeniorHigh       bool
	Areas            []LearningArea
	GeneralAverage   *float64
	GeneralRemark    string
	SemesterAverages [2]*float64
	Attendance       []AttendanceRow
	ActionTaken      string
}

// RemedialLine is a remedial class result listed on the permanent record.
type RemedialLine struct {
	LearningArea string
	FinalRating  float64
	RemedialMark float64
	Recomputed   float64
	Remark       string
}

// SchoolYearBlock is one school year on the permanent record.
type SchoolYearBlock struct {
	SchoolYear     string
	GradeLevel     int
	Section        string
	Areas          []LearningArea
	GeneralAverage *float64
	Remedials      []RemedialLine
	RemedialFrom   *time.Time
	RemedialTo     *time.Time
	ActionTaken    string
}

// PermanentRecord is the content of a learner's permanent academic record (SF10).
type PermanentRecord struct {
	School  SchoolInfo
	Learner LearnerInfo
	Years   []SchoolYearBlock
}

// ReportCardRenderer prints SF9 and SF10 forms.
type ReportCardRenderer struct{}

// NewReportCardRenderer constructs the renderer.
func NewReportCardRenderer() *ReportCardRenderer {
	return &ReportCardRenderer{}
}

// SF9 renders one page per report card into a single document.
func (r *ReportCardRenderer) SF9(cards ...ReportCard) ([]byte, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("sf9 requires at least one report card")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	for _, card := range cards {
		pdf.AddPage()
		schoolHeader(pdf, card.School, "LEARNER'S PROGRESS REPORT CARD")
		learnerBlock(pdf, card.Learner,
			fmt.Sprintf("Grade %d", card.GradeLevel),
			"Section: "+card.Section,
			"School Year: "+card.SchoolYear,
		)
		if card.SeniorHigh {
			seniorAreasTable(pdf, card)
		} else {
			juniorAreasTable(pdf, card)
		}
		attendanceTable(pdf, card.Attendance)
		if card.ActionTaken != "" {
			pdf.Ln(3)
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(0, 6, "Action taken: "+card.ActionTaken, "", 1, "", false, 0, "")
		}
	}
	return output(pdf)
}

// SF10 renders the permanent record of one learner, one block per school year.
func (r *ReportCardRenderer) SF10(record PermanentRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	schoolHeader(pdf, record.School, "LEARNER'S PERMANENT ACADEMIC RECORD")
	learnerBlock(pdf, record.Learner)
	if len(record.Years) == 0 {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "No scholastic record.", "", 1, "", false, 0, "")
	}
	for _, year := range record.Years {
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("SCHOLASTIC RECORD  Grade %d  Section %s  School Year %s", year.GradeLevel, year.Section, year.SchoolYear), "B", 1, "", false, 0, "")

		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(110, 7, "Learning Areas", "1", 0, "C", false, 0, "")
		pdf.CellFormat(38, 7, "Final Rating", "1", 0, "C", false, 0, "")
		pdf.CellFormat(38, 7, "Remarks", "1", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, area := range year.Areas {
			pdf.CellFormat(110, 6, areaName(area), "1", 0, "", false, 0, "")
			pdf.CellFormat(38, 6, FormatGrade(area.Final), "1", 0, "C", false, 0, "")
			pdf.CellFormat(38, 6, area.Remark, "1", 1, "C", false, 0, "")
		}
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(110, 6, "General Average", "1", 0, "R", false, 0, "")
		pdf.CellFormat(76, 6, FormatGrade(year.GeneralAverage), "1", 1, "C", false, 0, "")

		if len(year.Remedials) > 0 {
			pdf.Ln(2)
			pdf.SetFont("Arial", "", 8)
			pdf.CellFormat(0, 5, fmt.Sprintf("Remedial classes conducted from %s to %s", formatDate(year.RemedialFrom), formatDate(year.RemedialTo)), "", 1, "", false, 0, "")
			headers := []string{"Learning Areas", "Final Rating", "Remedial Class Mark", "Recomputed Final Grade", "Remarks"}
			widths := []float64{62, 30, 32, 34, 28}
			pdf.SetFont("Arial", "B", 8)
			for i, h := range headers {
				pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Arial", "", 8)
			for _, line := range year.Remedials {
				final, mark, recomputed := line.FinalRating, line.RemedialMark, line.Recomputed
				pdf.CellFormat(widths[0], 6, line.LearningArea, "1", 0, "", false, 0, "")
				pdf.CellFormat(widths[1], 6, FormatGrade(&final), "1", 0, "C", false, 0, "")
				pdf.CellFormat(widths[2], 6, FormatGrade(&mark), "1", 0, "C", false, 0, "")
				pdf.CellFormat(widths[3], 6, FormatGrade(&recomputed), "1", 0, "C", false, 0, "")
				pdf.CellFormat(widths[4], 6, line.Remark, "1", 1, "C", false, 0, "")
			}
		}
		if year.ActionTaken != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.CellFormat(0, 6, "Action taken: "+year.ActionTaken, "", 1, "", false, 0, "")
		}
	}
	return output(pdf)
}

// FormatGrade prints whole grades without decimals and averages with two. Missing grades are blank.
func FormatGrade(v *float64) string {
	if v == nil {
		return ""
	}
	if *v == math.Trunc(*v) {
		return fmt.Sprintf("%.0f", *v)
	}
	return fmt.Sprintf("%.2f", *v)
}

func schoolHeader(pdf *gofpdf.Fpdf, school SchoolInfo, form string) {
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 4, "Republic of the Philippines", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, "Department of Education", "", 1, "C", false, 0, "")
	for _, line := range []string{school.Region, school.Division, school.District} {
		if line != "" {
			pdf.CellFormat(0, 4, line, "", 1, "C", false, 0, "")
		}
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, strings.ToUpper(school.Name), "", 1, "C", false, 0, "")
	if school.ID != "" {
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 4, "School ID: "+school.ID, "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 7, form, "", 1, "C", false, 0, "")
	pdf.Ln(2)
}

func learnerBlock(pdf *gofpdf.Fpdf, learner LearnerInfo, extra ...string) {
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(120, 5, "Name: "+learner.Name, "", 0, "", false, 0, "")
	pdf.CellFormat(0, 5, "LRN: "+learner.LRN, "", 1, "", false, 0, "")
	line := "Sex: " + learner.Sex
	if learner.BirthDate != nil {
		line += "    Birth date: " + formatDate(learner.BirthDate)
	}
	if len(extra) > 0 {
		line += "    " + strings.Join(extra, "    ")
	}
	pdf.CellFormat(0, 5, line, "", 1, "", false, 0, "")
	pdf.Ln(3)
}

func juniorAreasTable(pdf *gofpdf.Fpdf, card ReportCard) {
	widths := []float64{66, 18, 18, 18, 18, 22, 26}
	headers := []string{"Learning Areas", "1", "2", "3", "4", "Final Rating", "Remarks"}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, area := range card.Areas {
		pdf.CellFormat(widths[0], 6, areaName(area), "1", 0, "", false, 0, "")
		for i, q := range area.Quarters {
			pdf.CellFormat(widths[i+1], 6, FormatGrade(q), "1", 0, "C", false, 0, "")
		}
		pdf.CellFormat(widths[5], 6, FormatGrade(area.Final), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[6], 6, area.Remark, "1", 1, "C", false, 0, "")
	}
	generalAverageRow(pdf, widths[0]+widths[1]+widths[2]+widths[3]+widths[4], widths[5], widths[6], card.GeneralAverage, card.GeneralRemark)
}

func seniorAreasTable(pdf *gofpdf.Fpdf, card ReportCard) {
	widths := []float64{58, 15, 15, 18, 15, 15, 18, 14, 18}
	headers := []string{"Subjects", "Q1", "Q2", "1st Sem", "Q3", "Q4", "2nd Sem", "Final", "Remarks"}
	pdf.SetFont("Arial", "B", 8)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, area := range card.Areas {
		cells := []string{
			area.Name,
			FormatGrade(area.Quarters[0]), FormatGrade(area.Quarters[1]), FormatGrade(area.Semesters[0]),
			FormatGrade(area.Quarters[2]), FormatGrade(area.Quarters[3]), FormatGrade(area.Semesters[1]),
			FormatGrade(area.Final), area.Remark,
		}
		for i, c := range cells {
			align := "C"
			if i == 0 {
				align = ""
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 8)
	label := widths[0] + widths[1] + widths[2]
	pdf.CellFormat(label, 6, "General Average for the Semester", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 6, FormatGrade(card.SemesterAverages[0]), "1", 0, "C", false, 0, "")
	pdf.CellFormat(widths[4]+widths[5], 6, "", "1", 0, "", false, 0, "")
	pdf.CellFormat(widths[6], 6, FormatGrade(card.SemesterAverages[1]), "1", 0, "C", false, 0, "")
	pdf.CellFormat(widths[7]+widths[8], 6, "", "1", 1, "", false, 0, "")
	rest := 0.0
	for _, w := range widths[1:7] {
		rest += w
	}
	generalAverageRow(pdf, widths[0]+rest, widths[7], widths[8], card.GeneralAverage, card.GeneralRemark)
}

func generalAverageRow(pdf *gofpdf.Fpdf, labelWidth, valueWidth, remarkWidth float64, avg *float64, remark string) {
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(labelWidth, 6, "General Average", "1", 0, "R", false, 0, "")
	pdf.CellFormat(valueWidth, 6, FormatGrade(avg), "1", 0, "C", false, 0, "")
	pdf.CellFormat(remarkWidth, 6, remark, "1", 1, "C", false, 0, "")
}

func attendanceTable(pdf *gofpdf.Fpdf, rows []AttendanceRow) {
	if len(rows) == 0 {
		return
	}
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(0, 6, "REPORT ON ATTENDANCE", "", 1, "C", false, 0, "")

	label := 38.0
	cell := (186 - label) / float64(len(rows)+1)
	pdf.SetFont("Arial", "B", 7)
	pdf.CellFormat(label, 6, "", "1", 0, "", false, 0, "")
	for _, r := range rows {
		pdf.CellFormat(cell, 6, r.Month, "1", 0, "C", false, 0, "")
	}
	pdf.CellFormat(cell, 6, "Total", "1", 1, "C", false, 0, "")

	lines := []struct {
		title string
		value func(AttendanceRow) int
	}{
		{"No. of school days", func(r AttendanceRow) int { return r.SchoolDays }},
		{"No. of days present", func(r AttendanceRow) int { return r.DaysPresent }},
		{"No. of days absent", func(r AttendanceRow) int { return r.DaysAbsent }},
	}
	pdf.SetFont("Arial", "", 7)
	for _, line := range lines {
		pdf.CellFormat(label, 6, line.title, "1", 0, "", false, 0, "")
		total := 0
		for _, r := range rows {
			v := line.value(r)
			total += v
			pdf.CellFormat(cell, 6, fmt.Sprintf("%d", v), "1", 0, "C", false, 0, "")
		}
		pdf.CellFormat(cell, 6, fmt.Sprintf("%d", total), "1", 1, "C", false, 0, "")
	}
}

func areaName(area LearningArea) string {
	if area.Component {
		return "      " + area.Name
	}
	return area.Name
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "____"
	}
	return t.Format("January 2, 2006")
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
