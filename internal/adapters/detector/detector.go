// Package detector supplies per-person geometry for an analysis. Detection
// itself runs outside the service (in the browser or an upstream pipeline);
// this package validates what was supplied and measures the frame.
package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"math"

	_ "golang.org/x/image/webp"

	"github.com/okian/framerank/internal/domain/model"
)

// Sentinel errors.
var (
	// ErrUnavailable means no detector ran for this frame.
	ErrUnavailable = errors.New("detector unavailable")
	// ErrNoDimensions means the frame size could not be determined.
	ErrNoDimensions = errors.New("frame dimensions unknown")
)

// Frame is the input to a Detector.
type Frame struct {
	Image    []byte
	MimeType string
	Width    float64
	Height   float64
	// Detections supplied by the client. Nil means none were supplied.
	Detections []model.Detection
}

// Detector finds people in a frame.
type Detector interface {
	Detect(ctx context.Context, f Frame) ([]model.Detection, error)
}

// Supplied is a Detector that trusts client-supplied geometry.
type Supplied struct{}

// NewSupplied creates a Supplied detector.
func NewSupplied() *Supplied { return &Supplied{} }

// Detect returns the usable supplied detections. Entries with neither a box nor
// keypoints, or with non-finite coordinates, are dropped. It returns
// ErrUnavailable when the client ran no detector.
func (s *Supplied) Detect(ctx context.Context, f Frame) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Detections == nil {
		return nil, ErrUnavailable
	}
	out := make([]model.Detection, 0, len(f.Detections))
	for _, d := range f.Detections {
		if usable(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func usable(d model.Detection) bool {
	if d.BBox != nil {
		b := *d.BBox
		if !finite(b.X, b.Y, b.W, b.H) {
			return false
		}
	}
	for _, k := range d.Keypoints {
		if !finite(k.X, k.Y, k.Score) {
			return false
		}
	}
	_, ok := d.Bounds()
	return ok
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Dimensions reads the frame size from the image header without decoding pixels.
func Dimensions(img []byte) (width, height float64, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrNoDimensions, err)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}
