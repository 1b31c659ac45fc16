// Package confidence provides trust-score math for price signals.
package confidence

import (
	"math"
	"strings"
)

// Standard trust levels assigned to signal sources.
const (
	High   = 0.95
	Medium = 0.80
	Low    = 0.60
	Min    = 0.50
)

// FromLabel maps a collaborator-supplied confidence label to a score.
// Unknown labels get the floor.
func FromLabel(label string) float64 {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high":
		return High
	case "medium":
		return Medium
	case "low":
		return Low
	default:
		return Min
	}
}

// Aggregate combines multiple scores with a geometric mean, so one
// low-confidence factor drags the whole result down.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	product := 1.0
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		product *= s
	}
	return Clamp(math.Pow(product, 1.0/float64(len(scores))))
}

// Clamp bounds a score to [0, 1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
