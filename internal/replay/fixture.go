package replay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Synthetic frame geometry.
const (
	frameWidth  = 1200
	frameHeight = 900
	thumbSide   = 8
	minPeople   = 2
	maxPeople   = 6
)

// LoadFixtures reads a JSON array of fixtures. Relative image files resolve
// against the fixture file's directory.
func LoadFixtures(path string) ([]Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range fixtures {
		f := &fixtures[i]
		if f.Name == "" {
			f.Name = fmt.Sprintf("fixture-%d", i+1)
		}
		if f.ImageFile == "" {
			continue
		}
		p := f.ImageFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		img, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", f.Name, err)
		}
		f.Request.Image = base64.StdEncoding.EncodeToString(img)
	}
	return fixtures, nil
}

// SaveFixtures writes fixtures as an indented JSON array.
func SaveFixtures(path string, fixtures []Fixture) error {
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixtures: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixtures: %w", err)
	}
	return nil
}

// Synthetic builds n reproducible fixtures of 2 to 6 people each. Every
// other person carries keypoints; the rest are boxes only.
func Synthetic(n int, seed uint64) ([]Fixture, error) {
	thumb, err := thumbnail()
	if err != nil {
		return nil, err
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	out := make([]Fixture, 0, n)
	for i := range n {
		people := minPeople + r.IntN(maxPeople-minPeople+1)
		dets := make([]model.Detection, 0, people)
		slot := float64(frameWidth) / float64(people)
		for p := range people {
			w := slot * (0.4 + 0.5*r.Float64())
			h := float64(frameHeight) * (0.35 + 0.55*r.Float64())
			box := model.BBox{
				X: float64(p)*slot + (slot-w)*r.Float64(),
				Y: (float64(frameHeight) - h) * r.Float64(),
				W: w,
				H: h,
			}
			d := model.Detection{Confidence: 0.5 + 0.5*r.Float64()}
			if p%2 == 0 {
				d.Keypoints = skeleton(box, r)
			} else {
				d.BBox = &box
			}
			dets = append(dets, d)
		}
		out = append(out, Fixture{
			Name: fmt.Sprintf("synthetic-%03d", i+1),
			Request: types.AnalyzeRequest{
				Image:      thumb,
				MimeType:   types.MimePNG,
				Width:      frameWidth,
				Height:     frameHeight,
				Detections: dets,
			},
		})
	}
	return out, nil
}

// skeletonLayout places each part inside a unit box.
var skeletonLayout = []struct {
	part string
	x, y float64
}{
	{"nose", 0.50, 0.10},
	{"leftEye", 0.45, 0.08},
	{"rightEye", 0.55, 0.08},
	{"leftShoulder", 0.30, 0.25},
	{"rightShoulder", 0.70, 0.25},
	{"leftElbow", 0.20, 0.45},
	{"rightElbow", 0.80, 0.45},
	{"leftHip", 0.35, 0.60},
	{"rightHip", 0.65, 0.60},
}

func skeleton(box model.BBox, r *rand.Rand) []model.Keypoint {
	kps := make([]model.Keypoint, 0, len(skeletonLayout))
	for _, s := range skeletonLayout {
		jitter := (r.Float64() - 0.5) * 0.06
		kps = append(kps, model.Keypoint{
			Part:  s.part,
			X:     box.X + (s.x+jitter)*box.W,
			Y:     box.Y + (s.y+jitter)*box.H,
			Score: 0.2 + 0.8*r.Float64(),
		})
	}
	return kps
}

// thumbnail is a tiny valid PNG used as the image of synthetic fixtures.
func thumbnail() (string, error) {
	img := image.NewGray(image.Rect(0, 0, thumbSide, thumbSide))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 4)
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
