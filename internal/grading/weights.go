package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// SchemeKind discriminates the grade-weight variants.
type SchemeKind string

// Supported weighting schemes.
const (
	SchemeFaceToFace SchemeKind = "face_to_face"
	SchemeModular    SchemeKind = "modular"
	SchemeOther      SchemeKind = "other"
)

// Component score keys used by the face-to-face and modular schemes.
const (
	WrittenWork         = "written_work"
	PerformanceTask     = "performance_task"
	QuarterlyAssessment = "quarterly_assessment"
)

// ErrInvalidWeights is returned when scheme weights do not add up to 100.
var ErrInvalidWeights = errors.New("component weights must add up to 100")

// ComponentScores maps a component key to a percentage score (0-100).
type ComponentScores map[string]float64

// WeightScheme turns component percentage scores into a quarter grade.
type WeightScheme interface {
	Kind() SchemeKind
	Validate() error
	QuarterGrade(scores ComponentScores) (float64, error)
}

// ComponentWeight is one named, weighted component of the Other scheme.
type ComponentWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// FaceToFace weighs written work, performance tasks and the quarterly assessment.
type FaceToFace struct {
	WrittenWork         float64 `json:"written_work"`
	PerformanceTask     float64 `json:"performance_task"`
	QuarterlyAssessment float64 `json:"quarterly_assessment"`
}

// Modular drops the quarterly assessment.
type Modular struct {
	WrittenWork     float64 `json:"written_work"`
	PerformanceTask float64 `json:"performance_task"`
}

// Other carries a free-form list of components.
type Other struct {
	Components []ComponentWeight `json:"components"`
}

// Kind implements WeightScheme.
func (FaceToFace) Kind() SchemeKind { return SchemeFaceToFace }

// Kind implements WeightScheme.
func (Modular) Kind() SchemeKind { return SchemeModular }

// Kind implements WeightScheme.
func (Other) Kind() SchemeKind { return SchemeOther }

// Validate implements WeightScheme.
func (s FaceToFace) Validate() error {
	return checkWeights(s.weights())
}

// Validate implements WeightScheme.
func (s Modular) Validate() error {
	return checkWeights(s.weights())
}

// Validate implements WeightScheme.
func (s Other) Validate() error {
	if len(s.Components) == 0 {
		return fmt.Errorf("%w: no components", ErrInvalidWeights)
	}
	seen := make(map[string]bool, len(s.Components))
	for _, c := range s.Components {
		key := normaliseKey(c.Name)
		if key == "" {
			return fmt.Errorf("%w: component name required", ErrInvalidWeights)
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate component %q", ErrInvalidWeights, c.Name)
		}
		seen[key] = true
	}
	return checkWeights(s.weights())
}

// QuarterGrade implements WeightScheme.
func (s FaceToFace) QuarterGrade(scores ComponentScores) (float64, error) {
	return weighted(s.weights(), scores)
}

// QuarterGrade implements WeightScheme.
func (s Modular) QuarterGrade(scores ComponentScores) (float64, error) {
	return weighted(s.weights(), scores)
}

// QuarterGrade implements WeightScheme.
func (s Other) QuarterGrade(scores ComponentScores) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return weighted(s.weights(), scores)
}

func (s FaceToFace) weights() map[string]float64 {
	return map[string]float64{
		WrittenWork:         s.WrittenWork,
		PerformanceTask:     s.PerformanceTask,
		QuarterlyAssessment: s.QuarterlyAssessment,
	}
}

func (s Modular) weights() map[string]float64 {
	return map[string]float64{WrittenWork: s.WrittenWork, PerformanceTask: s.PerformanceTask}
}

func (s Other) weights() map[string]float64 {
	w := make(map[string]float64, len(s.Components))
	for _, c := range s.Components {
		w[normaliseKey(c.Name)] = c.Weight
	}
	return w
}

func checkWeights(weights map[string]float64) error {
	total := 0.0
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for %s", ErrInvalidWeights, name)
		}
		total += w
	}
	if math.Abs(total-100) > 0.001 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidWeights, total)
	}
	return nil
}

func weighted(weights map[string]float64, scores ComponentScores) (float64, error) {
	if err := checkWeights(weights); err != nil {
		return 0, err
	}
	normalised := make(map[string]float64, len(scores))
	for k, v := range scores {
		normalised[normaliseKey(k)] = v
	}
	total := 0.0
	for name, w := range weights {
		if w == 0 {
			continue
		}
		score, ok := normalised[name]
		if !ok {
			return 0, fmt.Errorf("missing score for %s", name)
		}
		if score < 0 || score > 100 {
			return 0, fmt.Errorf("score for %s out of range", name)
		}
		total += score * w / 100
	}
	return Round0(total), nil
}

func normaliseKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

type schemeEnvelope struct {
	Kind                SchemeKind        `json:"kind"`
	WrittenWork         float64           `json:"written_work,omitempty"`
	PerformanceTask     float64           `json:"performance_task,omitempty"`
	QuarterlyAssessment float64           `json:"quarterly_assessment,omitempty"`
	Components          []ComponentWeight `json:"components,omitempty"`
}

// EncodeScheme serialises a scheme with its kind tag. Only the fields of the active variant
// are written.
func EncodeScheme(s WeightScheme) ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	env := schemeEnvelope{Kind: s.Kind()}
	switch v := s.(type) {
	case FaceToFace:
		env.WrittenWork, env.PerformanceTask, env.QuarterlyAssessment = v.WrittenWork, v.PerformanceTask, v.QuarterlyAssessment
	case Modular:
		env.WrittenWork, env.PerformanceTask = v.WrittenWork, v.PerformanceTask
	case Other:
		env.Components = v.Components
	default:
		return nil, fmt.Errorf("unknown weight scheme %T", s)
	}
	return json.Marshal(env)
}

// DecodeScheme parses a tagged scheme. A JSON null yields a nil scheme.
func DecodeScheme(data []byte) (WeightScheme, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var env schemeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode weight scheme: %w", err)
	}
	switch env.Kind {
	case SchemeFaceToFace:
		return FaceToFace{WrittenWork: env.WrittenWork, PerformanceTask: env.PerformanceTask, QuarterlyAssessment: env.QuarterlyAssessment}, nil
	case SchemeModular:
		return Modular{WrittenWork: env.WrittenWork, PerformanceTask: env.PerformanceTask}, nil
	case SchemeOther:
		return Other{Components: env.Components}, nil
	default:
		return nil, fmt.Errorf("unknown weight scheme kind %q", env.Kind)
	}
}
