package model

// Keypoint is a named anatomical landmark reported by a pose detector.
type Keypoint struct {
	Part  string  `json:"part"`  // e.g. leftShoulder or left_shoulder
	X     float64 `json:"x"`     // pixels from the left edge
	Y     float64 `json:"y"`     // pixels from the top edge
	Score float64 `json:"score"` // detector confidence in [0,1]
}

// BBox is an axis-aligned box in pixel coordinates.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the box area, zero for degenerate boxes.
func (b BBox) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// CenterX returns the horizontal centre of the box.
func (b BBox) CenterX() float64 { return b.X + b.W/2 }

// Detection is the geometry of one physical person as produced by an external
// face or pose detector. The core treats it as read-only.
type Detection struct {
	BBox       *BBox      `json:"bbox,omitempty"`
	Keypoints  []Keypoint `json:"keypoints,omitempty"`
	Confidence float64    `json:"confidence"`
	Label      string     `json:"label,omitempty"`
}

// Bounds returns the box enclosing the detection: the explicit bbox when present,
// otherwise the extent of its keypoints. ok is false when neither is usable.
func (d Detection) Bounds() (BBox, bool) {
	if d.BBox != nil && d.BBox.Area() > 0 {
		return *d.BBox, true
	}
	if len(d.Keypoints) == 0 {
		return BBox{}, false
	}
	minX, minY := d.Keypoints[0].X, d.Keypoints[0].Y
	maxX, maxY := minX, minY
	for _, k := range d.Keypoints[1:] {
		minX = min(minX, k.X)
		minY = min(minY, k.Y)
		maxX = max(maxX, k.X)
		maxY = max(maxY, k.Y)
	}
	return BBox{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, true
}
