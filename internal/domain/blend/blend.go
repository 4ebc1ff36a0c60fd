// Package blend fuses the remote and locally derived signal vectors for a person.
package blend

import (
	"math"

	"github.com/okian/framerank/internal/domain/model"
)

// Trust given to the remote estimate per signal. The local estimate gets the
// remainder. The remote service sees the whole scene (occlusion, depth) while
// keypoints measure body geometry directly.
const (
	RemoteSpatial   = 0.6
	RemotePosture   = 0.4
	RemoteFacial    = 0.6
	RemoteAttention = 0.5
)

// Local is a vector produced on this side of the wire together with its origin.
type Local struct {
	Index    int    // detection order, 0-based
	Label    string // user supplied; empty when unnamed
	Position string
	CenterX  float64
	Area     float64 // bounding box area in pixels
	Signals  model.Vector
	Source   model.Source // keypoint or positional
}

// Blend fuses remote and local. A missing side is skipped and the other passes
// through unchanged; ok is false only when both are nil. The composite score is
// never blended: callers recompute it from the returned vector.
func Blend(remote *model.Vector, local *Local) (v model.Vector, src model.Source, ok bool) {
	switch {
	case remote != nil && local != nil:
		l := local.Signals
		return model.Vector{
			SpatialPresence:  mix(remote.SpatialPresence, l.SpatialPresence, RemoteSpatial),
			PostureDominance: mix(remote.PostureDominance, l.PostureDominance, RemotePosture),
			FacialIntensity:  mix(remote.FacialIntensity, l.FacialIntensity, RemoteFacial),
			AttentionCapture: mix(remote.AttentionCapture, l.AttentionCapture, RemoteAttention),
		}, model.SourceBlended, true
	case remote != nil:
		return *remote, model.SourceRemote, true
	case local != nil:
		return local.Signals, local.Source, true
	default:
		return model.Vector{}, "", false
	}
}

func mix(remote, local, w float64) float64 {
	return math.Round(remote*w + local*(1-w))
}
