// Package remote wraps a multimodal vision service that estimates the four
// composition signals for every prominent person in a photograph.
//
// The service is trusted for raw signal estimates, labels, positions and the
// explanation only. Composite scores, ranks, winner and tie flags it reports are
// never decoded; callers recompute them locally.
package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/json-iterator/go/extra"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/scoring"
	"github.com/okian/framerank/pkg/logger"
	"github.com/okian/framerank/pkg/metrics"
)

// MaxBase64Length is the largest accepted base64 payload: 5 MiB of image data
// after base64 expansion.
const MaxBase64Length = 5 * 1024 * 1024 * 137 / 100

// People bounds for a valid analysis.
const (
	MinPeople = 2
	MaxPeople = 6
)

// legacyNotTwoPeople is emitted by older prompt revisions.
const legacyNotTwoPeople = "NOT_TWO_PEOPLE"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	// Models occasionally quote numbers ("85"); accept them.
	extra.RegisterFuzzyDecoders()
}

// Vision is the black-box remote service. It receives raw image bytes and the
// prompts and returns the model's text output.
type Vision interface {
	Generate(ctx context.Context, image []byte, mimeType, system, user string) (string, error)
}

// Image is a base64 encoded photograph, optionally prefixed with a data URL header.
type Image struct {
	Data     string
	MimeType string
}

// Analysis is the trusted subset of a remote response.
type Analysis struct {
	People      []model.Person
	Explanation string
}

// Adapter turns Vision output into validated analyses and typed failures.
type Adapter struct {
	vision   Vision
	validate *validator.Validate
	logger   logger.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Adapter around vision.
func New(vision Vision, opts ...Option) *Adapter {
	a := &Adapter{
		vision:   vision,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type signalsPayload struct {
	SpatialPresence  *float64 `json:"spatial_presence" validate:"required,gte=0,lte=100"`
	PostureDominance *float64 `json:"posture_dominance" validate:"required,gte=0,lte=100"`
	FacialIntensity  *float64 `json:"facial_intensity" validate:"required,gte=0,lte=100"`
	AttentionCapture *float64 `json:"attention_capture" validate:"required,gte=0,lte=100"`
}

type personPayload struct {
	Label    string          `json:"label"`
	Position string          `json:"position"`
	Signals  *signalsPayload `json:"signals" validate:"required"`
}

// payload is either an analysis or an error envelope.
type payload struct {
	Error       string          `json:"error"`
	Message     string          `json:"message"`
	People      []personPayload `json:"people" validate:"min=2,max=6,dive"`
	Explanation string          `json:"explanation"`
}

// Analyze sends img to the vision service and returns the validated analysis.
// Failures are *model.Error values carrying a public code.
func (a *Adapter) Analyze(ctx context.Context, img Image) (Analysis, error) {
	data := StripDataURL(img.Data)
	if len(data) > MaxBase64Length {
		return Analysis{}, model.WrapError(model.CodeInvalidImage, "Image too large. Please use an image under 5MB.", ErrTooLarge)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Analysis{}, model.WrapError(model.CodeInvalidImage, "Image data is not valid base64", fmt.Errorf("%w: %v", ErrBadEncoding, err))
	}

	start := time.Now()
	text, err := a.vision.Generate(ctx, raw, img.MimeType, SystemPrompt, UserPrompt())
	if err != nil {
		mapped := a.transportError(ctx, err)
		metrics.RecordRemoteCall(time.Since(start), string(model.CodeOf(mapped)))
		return Analysis{}, mapped
	}

	res, err := a.parse(ctx, text)
	code := "ok"
	if err != nil {
		code = string(model.CodeOf(err))
	}
	metrics.RecordRemoteCall(time.Since(start), code)
	return res, err
}

func (a *Adapter) transportError(ctx context.Context, err error) error {
	switch {
	case IsRateLimited(err):
		a.logger.Warn(ctx, "vision service throttled", logger.Error(err))
		return model.WrapError(model.CodeRateLimit, "Rate limit reached. Try again in a moment.", fmt.Errorf("%w: %v", ErrRateLimited, err))
	case errors.Is(err, context.DeadlineExceeded):
		a.logger.Warn(ctx, "vision service timed out", logger.Error(err))
		return model.WrapError(model.CodeAIError, "AI analysis timed out", err)
	default:
		a.logger.Error(ctx, "vision service call failed", logger.Error(err))
		return model.WrapError(model.CodeAIError, "AI service unavailable", err)
	}
}

func (a *Adapter) parse(ctx context.Context, text string) (Analysis, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return Analysis{}, model.WrapError(model.CodeAIError, "No response from AI", ErrEmptyResponse)
	}

	var p payload
	if err := json.UnmarshalFromString(cleaned, &p); err != nil {
		a.logger.Error(ctx, "vision response is not JSON", logger.String("raw", text), logger.Error(err))
		return Analysis{}, model.WrapError(model.CodeAIError, "Failed to parse AI response", fmt.Errorf("%w: %v", ErrUnparsable, err))
	}

	if p.Error != "" {
		msg := p.Message
		if msg == "" {
			msg = "Analysis not possible for this image"
		}
		code := rejectionCode(p.Error)
		if code == model.CodeAIError {
			a.logger.Error(ctx, "vision service returned unknown error tag", logger.String("raw", text))
		}
		return Analysis{}, model.WrapError(code, msg, fmt.Errorf("%w: %s", ErrRejected, p.Error))
	}

	if err := a.validate.Struct(p); err != nil {
		a.logger.Error(ctx, "vision response failed validation", logger.String("raw", text), logger.Error(err))
		return Analysis{}, model.WrapError(model.CodeAIError, "Unexpected AI response format", fmt.Errorf("%w: %v", ErrSchema, err))
	}

	out := Analysis{People: make([]model.Person, len(p.People)), Explanation: strings.TrimSpace(p.Explanation)}
	for i, pp := range p.People {
		v := model.Vector{
			SpatialPresence:  *pp.Signals.SpatialPresence,
			PostureDominance: *pp.Signals.PostureDominance,
			FacialIntensity:  *pp.Signals.FacialIntensity,
			AttentionCapture: *pp.Signals.AttentionCapture,
		}
		label := strings.TrimSpace(pp.Label)
		if label == "" {
			label = fmt.Sprintf("Person %d", i+1)
		}
		position := strings.ToLower(strings.TrimSpace(pp.Position))
		if position == "" {
			position = "unknown"
		}
		out.People[i] = model.Person{
			Label:          label,
			Position:       position,
			Signals:        v,
			CompositeScore: scoring.Composite(v),
			Source:         model.SourceRemote,
		}
	}
	return out, nil
}

func rejectionCode(tag string) model.Code {
	switch model.Code(strings.ToUpper(strings.TrimSpace(tag))) {
	case model.CodeNoPeople, legacyNotTwoPeople:
		return model.CodeNoPeople
	case model.CodeTooManyPeople:
		return model.CodeTooManyPeople
	case model.CodePoorQuality:
		return model.CodePoorQuality
	default:
		return model.CodeAIError
	}
}

// StripDataURL removes a "data:<mime>;base64," prefix if present.
func StripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
