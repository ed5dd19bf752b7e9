package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grade(v float64) *float64 { return &v }

func gradeSheet() Dataset {
	return Dataset{
		Title:   "Grade Sheet",
		Meta:    []MetaLine{{Label: "Section", Value: "Rizal"}, {Label: "School Year", Value: "2024-2025"}},
		Headers: []string{"Learner", "LRN", "General Average", "Remarks"},
		Rows: []map[string]string{
			{"Learner": "Dela Cruz, Juan", "LRN": "123456789012", "General Average": "78.33", "Remarks": "PASSED"},
		},
	}
}

func TestCSVExporterWritesMetaBeforeTable(t *testing.T) {
	out, err := NewCSVExporter().Render(gradeSheet())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Section,Rizal", lines[0])
	assert.Contains(t, []string{"", `""`}, strings.TrimSpace(lines[2]))
	assert.Equal(t, "Learner,LRN,General Average,Remarks", lines[3])
	assert.Equal(t, `"Dela Cruz, Juan",123456789012,78.33,PASSED`, lines[4])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(gradeSheet())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(5, 190)
	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, 190, total, 0.001)
	assert.Greater(t, widths[0], widths[1])
}

func TestFormatGrade(t *testing.T) {
	assert.Equal(t, "", FormatGrade(nil))
	assert.Equal(t, "85", FormatGrade(grade(85)))
	assert.Equal(t, "78.33", FormatGrade(grade(78.333)))
	assert.Equal(t, "0", FormatGrade(grade(0)))
}

func TestReportCardRendererSF9(t *testing.T) {
	card := ReportCard{
		School:     SchoolInfo{Name: "Sample National High School", ID: "301234", Region: "Region IV-A"},
		Learner:    LearnerInfo{Name: "Juan Dela Cruz", LRN: "123456789012", Sex: "M"},
		GradeLevel: 8,
		Section:    "Rizal",
		SchoolYear: "2024-2025",
		Areas: []LearningArea{
			{Name: "English", Quarters: [4]*float64{grade(80), grade(82), nil, nil}, Final: grade(81), Remark: "PASSED"},
			{Name: "MAPEH", Quarters: [4]*float64{grade(85)}, Final: grade(85), Remark: "PASSED"},
			{Name: "Music", Quarters: [4]*float64{grade(80)}, Component: true},
		},
		GeneralAverage: grade(83),
		GeneralRemark:  "PASSED",
		Attendance:     []AttendanceRow{{Month: "Jun", SchoolDays: 20, DaysPresent: 19, DaysAbsent: 1}},
		ActionTaken:    "Promoted",
	}
	senior := card
	senior.SeniorHigh = true
	senior.GradeLevel = 11

	out, err := NewReportCardRenderer().SF9(card, senior)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewReportCardRenderer().SF9()
	assert.Error(t, err)
}

func TestReportCardRendererSF10(t *testing.T) {
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC)
	record := PermanentRecord{
		School:  SchoolInfo{Name: "Sample National High School"},
		Learner: LearnerInfo{Name: "Juan Dela Cruz", LRN: "123456789012"},
		Years: []SchoolYearBlock{{
			SchoolYear:     "2024-2025",
			GradeLevel:     7,
			Section:        "Rizal",
			Areas:          []LearningArea{{Name: "English", Final: grade(70), Remark: "FAILED"}},
			GeneralAverage: grade(70),
			Remedials:      []RemedialLine{{LearningArea: "English", FinalRating: 70, RemedialMark: 85, Recomputed: 78, Remark: "PASSED"}},
			RemedialFrom:   &from,
			RemedialTo:     &to,
			ActionTaken:    "Promoted",
		}},
	}

	out, err := NewReportCardRenderer().SF10(record)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	out, err = NewReportCardRenderer().SF10(PermanentRecord{School: SchoolInfo{Name: "Empty"}})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
