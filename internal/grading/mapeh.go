package grading

import "strings"

// Component names one of the four MAPEH learning areas.
type Component string

// MAPEH components.
const (
	Music             Component = "Music"
	Arts              Component = "Arts"
	PhysicalEducation Component = "Physical Education"
	Health            Component = "Health"
)

// MAPEHName is the display name of the synthetic composite subject.
const MAPEHName = "MAPEH"

// Components lists the MAPEH components in report-card order.
var Components = []Component{Music, Arts, PhysicalEducation, Health}

// SubjectKind tells regular subjects apart from MAPEH rows.
type SubjectKind interface {
	isSubjectKind()
}

// RegularSubject is any subject outside the MAPEH group.
type RegularSubject struct{}

// MAPEHComponent is one of Music, Arts, Physical Education or Health.
type MAPEHComponent struct {
	Component Component
}

// MAPEHMain is the composite built from the four components.
type MAPEHMain struct{}

func (RegularSubject) isSubjectKind() {}
func (MAPEHComponent) isSubjectKind() {}
func (MAPEHMain) isSubjectKind()      {}

// ClassifySubject maps a subject name onto its kind.
func ClassifySubject(name string) SubjectKind {
	trimmed := strings.TrimSpace(name)
	for _, c := range Components {
		if strings.EqualFold(trimmed, string(c)) {
			return MAPEHComponent{Component: c}
		}
	}
	if strings.EqualFold(trimmed, MAPEHName) {
		return MAPEHMain{}
	}
	return RegularSubject{}
}

// ComponentOf returns the MAPEH component of a record, if it is one.
func ComponentOf(r SubjectRecord) (Component, bool) {
	kind := r.Kind
	if kind == nil {
		kind = ClassifySubject(r.Name)
	}
	c, ok := kind.(MAPEHComponent)
	return c.Component, ok
}

// CompositeQuarter averages the effective grades of the components that have one for q
// and rounds to a whole number. It returns nil when no component contributes.
func CompositeQuarter(components map[Component]QuarterGrades, q Quarter) *float64 {
	sum, n := 0.0, 0
	for _, c := range Components {
		g, ok := components[c]
		if !ok {
			continue
		}
		if v := g.Effective(q); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	v := Round0(sum / float64(n))
	return &v
}

// MAPEHComposite builds the composite quarter grades. ok is false unless all four
// components are present, in which case no composite exists.
func MAPEHComposite(components map[Component]QuarterGrades) (QuarterGrades, bool) {
	var composite QuarterGrades
	for _, c := range Components {
		if _, ok := components[c]; !ok {
			return composite, false
		}
	}
	for _, q := range Quarters {
		composite.Grades[q-1] = CompositeQuarter(components, q)
	}
	return composite, true
}

// SplitMAPEH separates MAPEH component records from the rest. The first record seen for a
// component wins.
func SplitMAPEH(records []SubjectRecord) (map[Component]SubjectRecord, []SubjectRecord) {
	components := make(map[Component]SubjectRecord)
	others := make([]SubjectRecord, 0, len(records))
	for _, r := range records {
		if c, ok := ComponentOf(r); ok {
			if _, seen := components[c]; !seen {
				components[c] = r
				continue
			}
		}
		others = append(others, r)
	}
	return components, others
}

// FoldMAPEH replaces a complete set of MAPEH components with one composite subject. An
// incomplete group is returned untouched so each component still counts on its own.
// When a component appears more than once, the first record builds the composite and
// the later ones are dropped from the folded result.
func FoldMAPEH(records []SubjectRecord) []SubjectRecord {
	components, others := SplitMAPEH(records)
	grades := make(map[Component]QuarterGrades, len(components))
	for c, r := range components {
		grades[c] = r.Grades
	}
	composite, ok := MAPEHComposite(grades)
	if !ok {
		return records
	}
	folded := make([]SubjectRecord, 0, len(others)+1)
	for _, r := range others {
		if _, dup := ComponentOf(r); !dup {
			folded = append(folded, r)
		}
	}
	return append(folded, SubjectRecord{Name: MAPEHName, Kind: MAPEHMain{}, Grades: composite})
}
