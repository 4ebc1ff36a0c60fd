// Package keypoint derives a signal vector from one person's pose keypoints
// using geometry only.
package keypoint

import (
	"math"
	"strings"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/scoring"
)

// Canonical part names after normalisation.
const (
	partNose          = "nose"
	partLeftEye       = "lefteye"
	partRightEye      = "righteye"
	partLeftShoulder  = "leftshoulder"
	partRightShoulder = "rightshoulder"
	partLeftElbow     = "leftelbow"
	partRightElbow    = "rightelbow"
	partLeftHip       = "lefthip"
	partRightHip      = "righthip"
)

// Deriver converts keypoint sets into signal vectors. It is stateless apart from
// its tuning and safe for concurrent use.
type Deriver struct {
	tuning Tuning
}

// NewDeriver creates a Deriver with the default tuning and any overrides.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{tuning: DefaultTuning()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tuning returns the weights in effect.
func (d *Deriver) Tuning() Tuning { return d.tuning }

// Derive returns the signal vector for one person. It never fails: missing or
// low-confidence keypoints degrade to neutral defaults.
func (d *Deriver) Derive(kps []model.Keypoint, frameW, frameH float64) model.Vector {
	parts := index(kps)
	visible := visibleOf(kps)
	if frameW <= 0 || frameH <= 0 {
		// Without a frame nothing positional can be measured.
		visible = nil
	}

	spatial := spatialPresence(visible, frameW, frameH)
	posture := d.postureDominance(parts)
	facial := facialIntensity(parts)
	attention := d.attentionCapture(visible, frameW, frameH, facial, spatial)

	return scoring.ClampVector(model.Vector{
		SpatialPresence:  spatial,
		PostureDominance: posture,
		FacialIntensity:  facial,
		AttentionCapture: attention,
	})
}

// normalizePart folds leftShoulder, left_shoulder and left-shoulder together.
func normalizePart(part string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(part))
}

// index maps normalised part names to keypoints. The first occurrence wins.
func index(kps []model.Keypoint) map[string]model.Keypoint {
	m := make(map[string]model.Keypoint, len(kps))
	for _, k := range kps {
		name := normalizePart(k.Part)
		if _, ok := m[name]; !ok {
			m[name] = k
		}
	}
	return m
}

func visibleOf(kps []model.Keypoint) []model.Keypoint {
	out := make([]model.Keypoint, 0, len(kps))
	for _, k := range kps {
		if k.Score > VisibilityThreshold && !math.IsNaN(k.X) && !math.IsNaN(k.Y) {
			out = append(out, k)
		}
	}
	return out
}

// extent returns the min/max corners of the given keypoints.
func extent(kps []model.Keypoint) (minX, minY, maxX, maxY float64) {
	minX, minY = kps[0].X, kps[0].Y
	maxX, maxY = minX, minY
	for _, k := range kps[1:] {
		minX = math.Min(minX, k.X)
		minY = math.Min(minY, k.Y)
		maxX = math.Max(maxX, k.X)
		maxY = math.Max(maxY, k.Y)
	}
	return minX, minY, maxX, maxY
}

func spatialPresence(visible []model.Keypoint, frameW, frameH float64) float64 {
	if len(visible) == 0 {
		return DefaultSpatial
	}
	minX, minY, maxX, maxY := extent(visible)
	w := (maxX - minX) * BoxMargin
	h := (maxY - minY) * BoxMargin
	occupancy := w * h / (frameW * frameH) * 100
	return scoring.Clamp(occupancy*spatialScale+spatialOffset, spatialMin, spatialMax)
}

func (d *Deriver) postureDominance(parts map[string]model.Keypoint) float64 {
	ls, okL := parts[partLeftShoulder]
	rs, okR := parts[partRightShoulder]
	if !okL || !okR || ls.Score <= ShoulderThreshold || rs.Score <= ShoulderThreshold {
		return DefaultPosture
	}
	shoulderW := math.Abs(rs.X - ls.X)
	if shoulderW == 0 {
		shoulderW = 1
	}

	expansion := float64(DefaultExpansion)
	if le, re, ok := pair(parts, partLeftElbow, partRightElbow); ok {
		elbowW := math.Abs(re.X - le.X)
		expansion = math.Min(expansionMax, elbowW/shoulderW*expansionScale+expansionOffset)
	}

	spine := float64(DefaultSpine)
	if lh, rh, ok := pair(parts, partLeftHip, partRightHip); ok {
		shoulderCX, shoulderCY := (ls.X+rs.X)/2, (ls.Y+rs.Y)/2
		hipCX, hipCY := (lh.X+rh.X)/2, (lh.Y+rh.Y)/2
		torso := math.Abs(shoulderCY - hipCY)
		if torso == 0 {
			torso = 1
		}
		lean := math.Abs(shoulderCX-hipCX) / torso
		spine = math.Max(spineMin, spineBase-lean*spineSlope)
	}

	tilt := math.Abs(ls.Y-rs.Y) / shoulderW
	level := math.Max(levelMin, levelBase-tilt*levelSlope)

	w := d.tuning.Posture
	blended := (expansion*w.A + spine*w.B + level*w.C) / w.sum()
	return math.Min(postureMax, blended)
}

// pair returns the two named keypoints when both clear LimbThreshold.
func pair(parts map[string]model.Keypoint, left, right string) (model.Keypoint, model.Keypoint, bool) {
	l, okL := parts[left]
	r, okR := parts[right]
	if !okL || !okR || l.Score <= LimbThreshold || r.Score <= LimbThreshold {
		return model.Keypoint{}, model.Keypoint{}, false
	}
	return l, r, true
}

func facialIntensity(parts map[string]model.Keypoint) float64 {
	var sum float64
	var n int
	for _, name := range []string{partNose, partLeftEye, partRightEye} {
		if k, ok := parts[name]; ok {
			sum += k.Score
			n++
		}
	}
	avg := float64(DefaultFaceConfidence)
	if n > 0 {
		avg = sum / float64(n)
	}
	facial := math.Min(facialMax, avg*facialScale+facialOffset)

	le, okL := parts[partLeftEye]
	re, okR := parts[partRightEye]
	if okL && okR && le.Score > EyeBonusThreshold && re.Score > EyeBonusThreshold {
		facial = math.Min(eyeBonusMax, facial+eyeBonus)
	}
	return facial
}

func (d *Deriver) attentionCapture(visible []model.Keypoint, frameW, frameH, facial, spatial float64) float64 {
	if len(visible) == 0 {
		return DefaultAttention
	}
	minX, minY, maxX, maxY := extent(visible)
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	dx := math.Abs(cx/frameW-0.5) * 2
	dy := math.Abs(cy/frameH-0.5) * 2
	dist := math.Sqrt(dx*dx+dy*dy) / math.Sqrt2
	centeredness := math.Max(0, 100-dist*centerednessSlope)

	w := d.tuning.Attention
	blended := (centeredness*w.A + facial*w.B + spatial*w.C) / w.sum()
	return math.Min(attentionMax, blended)
}
