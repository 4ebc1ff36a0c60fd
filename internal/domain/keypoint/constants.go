package keypoint

// Visibility and geometry constants.
const (
	// VisibilityThreshold is the minimum confidence for a keypoint to count
	// towards the body extent and centroid.
	VisibilityThreshold = 0.25
	// BoxMargin expands the keypoint extent by 40% to approximate clothing and
	// hair that sit outside the skeletal points.
	BoxMargin = 1.4
	// ShoulderThreshold is the confidence both shoulders need before posture is
	// measured at all.
	ShoulderThreshold = 0.3
	// LimbThreshold is the confidence elbows and hips need to feed a sub-score.
	LimbThreshold = 0.25
	// EyeBonusThreshold is the per-eye confidence that marks a camera-facing head.
	EyeBonusThreshold = 0.4
)

// Neutral defaults used when the inputs for a signal are missing.
const (
	DefaultSpatial   = 35
	DefaultPosture   = 45
	DefaultAttention = 40
	// DefaultExpansion and DefaultSpine stand in for a posture sub-score whose
	// keypoints are missing.
	DefaultExpansion = 50
	DefaultSpine     = 60
	// DefaultFaceConfidence is the assumed mean confidence when no face keypoint exists.
	DefaultFaceConfidence = 0.4
)

// Spatial presence: raw occupancy saturates quickly, so it is stretched and
// then bounded to a range that avoids both extremes.
const (
	spatialScale  = 1.5
	spatialOffset = 15
	spatialMin    = 20
	spatialMax    = 95
)

// Posture sub-score mappings.
const (
	expansionScale  = 65
	expansionOffset = 15
	expansionMax    = 100

	spineBase  = 85
	spineSlope = 70
	spineMin   = 15

	levelBase  = 85
	levelSlope = 80
	levelMin   = 20

	postureMax = 95
)

// Facial intensity mapping.
const (
	facialScale  = 75
	facialOffset = 20
	facialMax    = 90
	eyeBonus     = 10
	eyeBonusMax  = 95
)

// Attention capture mapping.
const (
	centerednessSlope = 90
	attentionMax      = 90
)
