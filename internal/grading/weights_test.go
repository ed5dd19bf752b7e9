package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceToFaceQuarterGrade(t *testing.T) {
	scheme := FaceToFace{WrittenWork: 30, PerformanceTask: 50, QuarterlyAssessment: 20}
	require.NoError(t, scheme.Validate())

	grade, err := scheme.QuarterGrade(ComponentScores{WrittenWork: 80, PerformanceTask: 90, QuarterlyAssessment: 70})
	require.NoError(t, err)
	// 24 + 45 + 14
	assert.Equal(t, 83.0, grade)

	_, err = scheme.QuarterGrade(ComponentScores{WrittenWork: 80})
	assert.Error(t, err)
}

func TestModularIgnoresQuarterlyAssessment(t *testing.T) {
	scheme := Modular{WrittenWork: 40, PerformanceTask: 60}
	grade, err := scheme.QuarterGrade(ComponentScores{WrittenWork: 75, PerformanceTask: 85})
	require.NoError(t, err)
	assert.Equal(t, 81.0, grade)
}

func TestOtherSchemeValidation(t *testing.T) {
	assert.ErrorIs(t, Other{}.Validate(), ErrInvalidWeights)
	assert.ErrorIs(t, Other{Components: []ComponentWeight{{Name: "Project", Weight: 60}}}.Validate(), ErrInvalidWeights)
	assert.ErrorIs(t, Other{Components: []ComponentWeight{{Name: "Quiz", Weight: 50}, {Name: "quiz", Weight: 50}}}.Validate(), ErrInvalidWeights)

	scheme := Other{Components: []ComponentWeight{{Name: "Project", Weight: 60}, {Name: "Oral Recitation", Weight: 40}}}
	grade, err := scheme.QuarterGrade(ComponentScores{"project": 90, "oral recitation": 80})
	require.NoError(t, err)
	assert.Equal(t, 86.0, grade)
}

func TestInvalidWeightsRejected(t *testing.T) {
	assert.ErrorIs(t, FaceToFace{WrittenWork: 30, PerformanceTask: 30, QuarterlyAssessment: 30}.Validate(), ErrInvalidWeights)
	_, err := Modular{WrittenWork: -10, PerformanceTask: 110}.QuarterGrade(ComponentScores{WrittenWork: 50, PerformanceTask: 50})
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestSchemeEncodingKeepsOnlyActiveVariant(t *testing.T) {
	data, err := EncodeScheme(FaceToFace{WrittenWork: 25, PerformanceTask: 50, QuarterlyAssessment: 25})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "components")

	decoded, err := DecodeScheme(data)
	require.NoError(t, err)
	assert.Equal(t, FaceToFace{WrittenWork: 25, PerformanceTask: 50, QuarterlyAssessment: 25}, decoded)

	other, err := DecodeScheme([]byte(`{"kind":"other","components":[{"name":"Project","weight":100}]}`))
	require.NoError(t, err)
	assert.Equal(t, SchemeOther, other.Kind())

	none, err := DecodeScheme([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = DecodeScheme([]byte(`{"kind":"blended"}`))
	assert.Error(t, err)
}
