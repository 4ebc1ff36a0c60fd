// Package positional estimates a signal vector from a bounding box alone. It is
// the last-resort estimator used when a detection carries no keypoints.
package positional

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/scoring"
)

// Output bounds per signal. Box-only estimates stay away from the extremes.
const (
	spatialMin, spatialMax     = 30, 95
	postureMin, postureMax     = 25, 95
	facialMin, facialMax       = 30, 95
	attentionMin, attentionMax = 25, 95
)

// Derive returns a deterministic vector for a box of the given confidence in a
// frameW x frameH image. The same inputs always produce the same vector.
func Derive(box model.BBox, confidence, frameW, frameH float64) model.Vector {
	seed := Seed(box)

	var ratio, cd float64
	if frameW > 0 && frameH > 0 {
		ratio = box.Area() / (frameW * frameH)
		cd = math.Abs(box.CenterX()/frameW - 0.5)
	}
	centered := 1 - cd
	confidence = scoring.Clamp(confidence, 0, 1)

	return scoring.ClampVector(model.Vector{
		SpatialPresence:  scoring.Clamp(ratio*400+unit(seed, 1)*20+35, spatialMin, spatialMax),
		PostureDominance: scoring.Clamp(50+unit(seed, 2)*30+centered*15, postureMin, postureMax),
		FacialIntensity:  scoring.Clamp(confidence*60+unit(seed, 3)*25+15, facialMin, facialMax),
		AttentionCapture: scoring.Clamp(centered*50+unit(seed, 4)*25+20, attentionMin, attentionMax),
	})
}

// Seed hashes the box geometry.
func Seed(box model.BBox) uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(box.X))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(box.Y))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(box.W))
	binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(box.H))
	return xxhash.Sum64(buf[:])
}

// unit maps (seed, salt) to [0,1).
func unit(seed uint64, salt byte) float64 {
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	buf[8] = salt
	return float64(xxhash.Sum64(buf[:])>>11) / (1 << 53)
}
