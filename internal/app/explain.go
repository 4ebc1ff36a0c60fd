package service

import (
	"fmt"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/scoring"
)

// explain builds a short neutral explanation from ranked people. It is used
// when no remote explanation is available.
func explain(ranked []model.Person, isTie bool) string {
	switch len(ranked) {
	case 0:
		return "No people were detected in this image."
	case 1:
		return fmt.Sprintf("%s is the only subject, with a composite score of %.1f driven mainly by %s.",
			ranked[0].Label, ranked[0].CompositeScore, leadingSignal(ranked[0].Signals))
	}
	first, second := ranked[0], ranked[1]
	if isTie {
		return fmt.Sprintf("%s and %s are effectively tied (%.1f vs %.1f); %s edges ahead on %s.",
			first.Label, second.Label, first.CompositeScore, second.CompositeScore, first.Label, leadingSignal(first.Signals))
	}
	return fmt.Sprintf("%s dominates the frame with a composite score of %.1f against %.1f for %s, driven mainly by %s.",
		first.Label, first.CompositeScore, second.CompositeScore, second.Label, leadingSignal(first.Signals))
}

// leadingSignal names the signal contributing most to the composite score.
func leadingSignal(v model.Vector) string {
	type contribution struct {
		name  string
		value float64
	}
	cs := []contribution{
		{"spatial presence", v.SpatialPresence * scoring.SpatialWeight},
		{"posture", v.PostureDominance * scoring.PostureWeight},
		{"facial intensity", v.FacialIntensity * scoring.FacialWeight},
		{"attention capture", v.AttentionCapture * scoring.AttentionWeight},
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if c.value > best.value {
			best = c
		}
	}
	return best.name
}
