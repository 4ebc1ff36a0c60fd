// Package scoring is the single source of truth for turning a signal vector
// into a composite dominance score.
package scoring

import (
	"math"

	"github.com/okian/framerank/internal/domain/model"
)

// Composite weights. They must sum to exactly 1.
const (
	SpatialWeight   = 0.30
	PostureWeight   = 0.25
	FacialWeight    = 0.25
	AttentionWeight = 0.20

	weightTotal = SpatialWeight + PostureWeight + FacialWeight + AttentionWeight
)

// Fails to compile unless weightTotal is exactly 1: any other value is either
// not an integer index or out of range.
var _ = [1]struct{}{}[weightTotal-1]

// MaxSignal and MinSignal bound every signal once a producer has clamped it.
const (
	MinSignal = 0
	MaxSignal = 100
)

// Composite returns the weighted score of v rounded to one decimal place.
// Inputs are not clamped; producers are responsible for keeping signals in range.
func Composite(v model.Vector) float64 {
	return Round1(v.SpatialPresence*SpatialWeight +
		v.PostureDominance*PostureWeight +
		v.FacialIntensity*FacialWeight +
		v.AttentionCapture*AttentionWeight)
}

// Round1 rounds x to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Clamp bounds x to [lo, hi]. NaN collapses to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}

// ClampVector rounds every signal to an integer and bounds it to [MinSignal, MaxSignal].
func ClampVector(v model.Vector) model.Vector {
	return model.Vector{
		SpatialPresence:  Clamp(math.Round(v.SpatialPresence), MinSignal, MaxSignal),
		PostureDominance: Clamp(math.Round(v.PostureDominance), MinSignal, MaxSignal),
		FacialIntensity:  Clamp(math.Round(v.FacialIntensity), MinSignal, MaxSignal),
		AttentionCapture: Clamp(math.Round(v.AttentionCapture), MinSignal, MaxSignal),
	}
}
