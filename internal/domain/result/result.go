// Package result derives the display tier for a prediction's confidence.
package result

import "math"

// Tier is the confidence-derived classification bucket.
type Tier string

const (
	TierExcellent  Tier = "excellent"
	TierBorderline Tier = "borderline"
	TierAtRisk     Tier = "at-risk"
)

// Band thresholds. Lower bounds are inclusive, so exactly 0.80 and exactly
// 0.50 land in the higher tier.
const (
	excellentThreshold  = 0.80
	borderlineThreshold = 0.50
)

// Classification pairs a tier with its display label.
type Classification struct {
	Tier  Tier
	Label string
}

// Classify maps a confidence in [0,1] to its display tier.
func Classify(confidence float64) Classification {
	switch {
	case confidence >= excellentThreshold:
		return Classification{Tier: TierExcellent, Label: "Excellent Performance"}
	case confidence >= borderlineThreshold:
		return Classification{Tier: TierBorderline, Label: "Borderline Performance"}
	default:
		return Classification{Tier: TierAtRisk, Label: "At Risk"}
	}
}

// Percent returns the rounded integer display percentage for a confidence,
// using round-half-up.
func Percent(confidence float64) int {
	return int(math.Floor(confidence*100 + 0.5))
}
