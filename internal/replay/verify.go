package replay

import (
	"fmt"
	"math"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/ranking"
	"github.com/okian/framerank/internal/domain/scoring"
)

// compositeTolerance absorbs one-decimal rounding of the composite.
const compositeTolerance = 0.051

// Verify returns every consistency rule res breaks. An empty slice means the
// result is well formed.
func Verify(res *model.Result) []string {
	if res == nil {
		return []string{"missing result"}
	}
	var v []string
	n := len(res.People)

	if res.Disclaimer != model.Disclaimer {
		v = append(v, "disclaimer differs from the canonical text")
	}
	if n == 0 {
		if res.WinnerIndex != -1 {
			v = append(v, fmt.Sprintf("empty result has winner index %d", res.WinnerIndex))
		}
		if res.IsTie {
			v = append(v, "empty result is marked as a tie")
		}
		return v
	}
	if res.WinnerIndex < 0 || res.WinnerIndex >= n {
		v = append(v, fmt.Sprintf("winner index %d outside [0,%d)", res.WinnerIndex, n))
	}

	for i, p := range res.People {
		if p.Rank != i+1 {
			v = append(v, fmt.Sprintf("person %d has rank %d", i, p.Rank))
		}
		if i > 0 && p.CompositeScore > res.People[i-1].CompositeScore {
			v = append(v, fmt.Sprintf("person %d outscores person %d", i, i-1))
		}
		if want := scoring.Composite(p.Signals); math.Abs(want-p.CompositeScore) > compositeTolerance {
			v = append(v, fmt.Sprintf("person %d composite %.1f, signals give %.1f", i, p.CompositeScore, want))
		}
		for name, s := range map[string]float64{
			"spatial_presence":  p.Signals.SpatialPresence,
			"posture_dominance": p.Signals.PostureDominance,
			"facial_intensity":  p.Signals.FacialIntensity,
			"attention_capture": p.Signals.AttentionCapture,
		} {
			if s < 0 || s > 100 || math.IsNaN(s) {
				v = append(v, fmt.Sprintf("person %d %s %.2f out of range", i, name, s))
			}
		}
	}

	tie := n >= 2 && math.Abs(res.People[0].CompositeScore-res.People[1].CompositeScore) < ranking.TieThreshold
	if tie != res.IsTie {
		v = append(v, fmt.Sprintf("is_tie %t, top scores give %t", res.IsTie, tie))
	}
	return v
}
