package grading

import "errors"

// ErrNoGeneralAverage is returned when no subject yields an average, so no promotion
// decision can be made.
var ErrNoGeneralAverage = errors.New("general average unavailable")

// Outcome is the end-of-year promotion decision.
type Outcome string

// Promotion outcomes.
const (
	Promoted              Outcome = "promoted"
	ConditionallyPromoted Outcome = "conditionally-promoted"
	Retained              Outcome = "retained"
)

// juniorHighRetentionFailures is the failure count at which a junior-high learner repeats.
const juniorHighRetentionFailures = 3

// DecidePromotion applies the promotion table. Junior high: 0 failures promoted, 1-2
// conditionally promoted, 3 or more retained. Senior high: any failure means conditional
// promotion.
func DecidePromotion(failed int, seniorHigh bool, generalAverage *float64) (Outcome, error) {
	if generalAverage == nil {
		return "", ErrNoGeneralAverage
	}
	switch {
	case failed <= 0:
		return Promoted, nil
	case seniorHigh:
		return ConditionallyPromoted, nil
	case failed >= juniorHighRetentionFailures:
		return Retained, nil
	default:
		return ConditionallyPromoted, nil
	}
}
