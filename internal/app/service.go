// Package service orchestrates a single visual-dominance analysis from raw
// request to ranked result.
package service

import (
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/framerank/internal/adapters/counter"
	"github.com/okian/framerank/internal/adapters/detector"
	"github.com/okian/framerank/internal/adapters/remote"
	"github.com/okian/framerank/internal/domain/blend"
	"github.com/okian/framerank/internal/domain/keypoint"
	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/positional"
	"github.com/okian/framerank/internal/domain/ranking"
	"github.com/okian/framerank/internal/domain/scoring"
	"github.com/okian/framerank/internal/domain/types"
	"github.com/okian/framerank/pkg/logger"
	"github.com/okian/framerank/pkg/metrics"
)

// Defaults.
const (
	DefaultRemoteTimeout = 25 * time.Second
	counterTimeout       = 2 * time.Second
)

// Accepted MIME types.
var allowedMimeTypes = map[string]bool{
	types.MimeJPEG: true,
	types.MimePNG:  true,
	types.MimeWEBP: true,
}

// Analyzer is the remote analysis step.
type Analyzer interface {
	Analyze(ctx context.Context, img remote.Image) (remote.Analysis, error)
}

// Request is one analysis request. Image is base64, optionally a data URL.
// Nil Detections means no detector ran.
type Request = types.AnalyzeRequest

// Service implements the analysis API.
type Service struct {
	mu      sync.Mutex
	started bool

	remote        Analyzer
	detector      detector.Detector
	deriver       *keypoint.Deriver
	counter       counter.Counter
	remoteTimeout time.Duration
	closers       []io.Closer

	analyses atomic.Int64
	failures atomic.Int64
	scans    sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRemote enables the remote analysis step.
func WithRemote(a Analyzer) Option {
	return func(s *Service) {
		s.remote = a
	}
}

// WithDetector replaces the supplied-geometry detector.
func WithDetector(d detector.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithDeriver sets the keypoint deriver, usually to apply custom tuning.
func WithDeriver(d *keypoint.Deriver) Option {
	return func(s *Service) {
		if d != nil {
			s.deriver = d
		}
	}
}

// WithCounter sets the scan counter.
func WithCounter(c counter.Counter) Option {
	return func(s *Service) {
		if c != nil {
			s.counter = c
		}
	}
}

// WithRemoteTimeout bounds the remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.remoteTimeout = d
		}
	}
}

// WithCloser registers a resource released by Stop.
func WithCloser(c io.Closer) Option {
	return func(s *Service) {
		if c != nil {
			s.closers = append(s.closers, c)
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		detector:      detector.NewSupplied(),
		deriver:       keypoint.NewDeriver(),
		counter:       counter.NewMemory(),
		remoteTimeout: DefaultRemoteTimeout,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true
	s.logger.Info(ctx, "analysis service started",
		logger.Any("remoteEnabled", s.remote != nil),
		logger.String("remoteTimeout", s.remoteTimeout.String()),
		logger.Any("tuning", s.deriver.Tuning()),
	)
	return nil
}

// Stop waits for pending scan increments, then releases registered resources.
func (s *Service) Stop() {
	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close resource", logger.Error(err))
		}
	}
	s.closers = nil
	s.started = false
	s.logger.Info(context.Background(), "analysis service stopped")
}

// ScanCount returns the number of completed scans.
func (s *Service) ScanCount(ctx context.Context) (int64, error) {
	n, err := s.counter.Count(ctx)
	if err != nil {
		metrics.RecordScanCounterError()
		return 0, err
	}
	return n, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"started":       s.started,
		"remoteEnabled": s.remote != nil,
		"analyses":      s.analyses.Load(),
		"failures":      s.failures.Load(),
	}
}

// run carries the state of one analysis.
type run struct {
	id        string
	start     time.Time
	state     State
	fallbacks []model.Fallback
	logger    logger.Logger
}

func (r *run) to(ctx context.Context, st State) {
	r.logger.Debug(ctx, "state transition", logger.String("from", string(r.state)), logger.String("to", string(st)))
	r.state = st
	metrics.RecordStateTransition(string(st))
}

func (r *run) fallback(ctx context.Context, stage, reason string) {
	r.logger.Warn(ctx, "falling back", logger.String("stage", stage), logger.String("reason", reason))
	r.fallbacks = append(r.fallbacks, model.Fallback{Stage: stage, Reason: reason})
	metrics.RecordFallback(stage)
}

// Analyze runs one request through the state machine. It returns a Ranked or
// Empty result, or a *model.Error when the analysis Failed.
func (s *Service) Analyze(ctx context.Context, req Request) (*model.Result, error) {
	r := &run{id: uuid.NewString(), start: time.Now(), state: StateIdle}
	r.logger = s.logger.Named("analysis")
	ctx = logger.WithFields(ctx, logger.String("analysisID", r.id))
	r.logger.Debug(ctx, "analysis received", logger.String("mimeType", req.MimeType))

	res, err := s.analyze(ctx, r, req)
	if err != nil {
		r.to(ctx, StateFailed)
		s.failures.Add(1)
		metrics.RecordAnalysis(string(StateFailed), time.Since(r.start))
		metrics.RecordErrorByComponent("orchestrator", string(model.CodeOf(err)))
		r.logger.Warn(ctx, "analysis failed", logger.String("code", string(model.CodeOf(err))), logger.Error(err))
		return nil, err
	}

	res.AnalysisID = r.id
	res.Disclaimer = model.Disclaimer
	res.Fallbacks = r.fallbacks
	res.ProcessingTimeMS = time.Since(r.start).Milliseconds()
	s.analyses.Add(1)
	metrics.RecordAnalysis(string(r.state), time.Since(r.start))

	if r.state == StateRanked {
		s.recordScan(ctx)
	}
	r.logger.Info(ctx, "analysis finished",
		logger.String("state", string(r.state)),
		logger.Int("people", len(res.People)),
		logger.Int("fallbacks", len(res.Fallbacks)),
		logger.Any("processingTimeMs", res.ProcessingTimeMS),
	)
	return res, nil
}

func (s *Service) analyze(ctx context.Context, r *run, req Request) (*model.Result, error) {
	raw, data, err := validate(req)
	if err != nil {
		return nil, err
	}

	// Detecting
	r.to(ctx, StateDetecting)
	frame := detector.Frame{
		Image:      raw,
		MimeType:   req.MimeType,
		Width:      float64(req.Width),
		Height:     float64(req.Height),
		Detections: req.Detections,
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		if w, h, err := detector.Dimensions(raw); err == nil {
			frame.Width, frame.Height = w, h
		} else {
			r.logger.Debug(ctx, "frame size unknown", logger.Error(err))
		}
	}
	dets, detErr := s.detector.Detect(ctx, frame)
	if detErr != nil {
		r.fallback(ctx, stageDetecting, detErr.Error())
	} else if len(dets) == 0 {
		r.to(ctx, StateEmpty)
		return &model.Result{People: []model.Person{}, WinnerIndex: -1, Explanation: explain(nil, false)}, nil
	}

	// Labeling
	if labeled := countLabels(dets); labeled > 0 {
		r.to(ctx, StateLabeling)
		r.logger.Debug(ctx, "user labels attached", logger.Int("labeled", labeled))
	}

	// Analyzing
	r.to(ctx, StateAnalyzing)
	var (
		g         errgroup.Group
		analysis  remote.Analysis
		remoteErr error
		locals    []blend.Local
		localErr  error
	)
	g.Go(func() error {
		analysis, remoteErr = s.analyzeRemote(ctx, remote.Image{Data: data, MimeType: req.MimeType})
		return nil
	})
	if detErr == nil {
		g.Go(func() error {
			locals, localErr = s.scanLocal(dets, frame.Width, frame.Height)
			return nil
		})
	} else {
		localErr = detErr
	}
	_ = g.Wait()

	var candidates []blend.Candidate
	explanation := analysis.Explanation
	switch {
	case remoteErr != nil && localErr != nil:
		if detErr == nil {
			r.fallback(ctx, stageLocal, localErr.Error())
		}
		return nil, remoteErr
	case remoteErr != nil:
		r.fallback(ctx, stageRemote, fmt.Sprintf("%s: %s", model.CodeOf(remoteErr), model.MessageOf(remoteErr)))
		if len(locals) > remote.MaxPeople {
			r.fallback(ctx, stageLocal, fmt.Sprintf("kept the %d largest of %d detections", remote.MaxPeople, len(locals)))
			locals = largest(locals, remote.MaxPeople)
		}
		candidates, _ = blend.Pair(nil, locals)
		explanation = ""
	case localErr != nil:
		if detErr == nil {
			r.fallback(ctx, stageLocal, localErr.Error())
		}
		candidates, _ = blend.Pair(analysis.People, nil)
	default:
		var reason string
		candidates, reason = blend.Pair(analysis.People, locals)
		if reason != "" {
			r.fallback(ctx, stageBlending, reason)
		}
	}

	// Ranked
	people := make([]model.Person, 0, len(candidates))
	sources := make([]string, 0, len(candidates))
	for _, c := range candidates {
		v, src, ok := blend.Blend(c.Remote, c.Local)
		if !ok {
			continue
		}
		people = append(people, model.Person{
			Label:          c.Label,
			Position:       c.Position,
			Signals:        v,
			CompositeScore: scoring.Composite(v),
			Source:         src,
		})
		sources = append(sources, string(src))
	}
	ranked, winner, tie := ranking.Rank(people)
	if explanation == "" {
		explanation = explain(ranked, tie)
	}
	r.to(ctx, StateRanked)
	metrics.RecordRankedPeople(sources...)

	return &model.Result{
		People:      ranked,
		WinnerIndex: winner,
		IsTie:       tie,
		Explanation: explanation,
	}, nil
}

// validate checks the request and returns the decoded image and its base64 form.
func validate(req Request) ([]byte, string, error) {
	if req.Image == "" || req.MimeType == "" {
		return nil, "", model.NewError(model.CodeInvalidImage, "Missing image or mimeType")
	}
	if !allowedMimeTypes[req.MimeType] {
		return nil, "", model.NewError(model.CodeInvalidImage, "Unsupported image type. Use JPEG, PNG or WebP.")
	}
	data := remote.StripDataURL(req.Image)
	if len(data) > remote.MaxBase64Length {
		return nil, "", model.WrapError(model.CodeInvalidImage, "Image too large. Please use an image under 5MB.", remote.ErrTooLarge)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", model.WrapError(model.CodeInvalidImage, "Image data is not valid base64", err)
	}
	return raw, data, nil
}

func (s *Service) analyzeRemote(ctx context.Context, img remote.Image) (remote.Analysis, error) {
	if s.remote == nil {
		return remote.Analysis{}, model.WrapError(model.CodeAIError, "Remote analysis is disabled", ErrRemoteDisabled)
	}
	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	return s.remote.Analyze(ctx, img)
}

// scanLocal derives a vector per detection: from keypoints when present,
// otherwise from the bounding box alone.
func (s *Service) scanLocal(dets []model.Detection, frameW, frameH float64) (out []blend.Local, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrLocalPanic, rec)
		}
	}()

	out = make([]blend.Local, 0, len(dets))
	for i, d := range dets {
		box, ok := d.Bounds()
		if !ok {
			continue
		}
		l := blend.Local{
			Index:    i,
			Label:    d.Label,
			Position: blend.PositionOf(box.CenterX(), frameW),
			CenterX:  box.CenterX(),
			Area:     box.Area(),
		}
		if len(d.Keypoints) > 0 {
			l.Signals = s.deriver.Derive(d.Keypoints, frameW, frameH)
			l.Source = model.SourceKeypoint
		} else {
			l.Signals = positional.Derive(box, d.Confidence, frameW, frameH)
			l.Source = model.SourcePositional
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, ErrNoLocalPeople
	}
	return out, nil
}

// largest keeps the n people with the biggest boxes, in their original order.
func largest(locals []blend.Local, n int) []blend.Local {
	idx := make([]int, len(locals))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(locals[b].Area, locals[a].Area)
	})
	keep := idx[:n]
	slices.Sort(keep)
	out := make([]blend.Local, 0, n)
	for _, i := range keep {
		out = append(out, locals[i])
	}
	return out
}

func countLabels(dets []model.Detection) int {
	n := 0
	for _, d := range dets {
		if d.Label != "" {
			n++
		}
	}
	return n
}

// recordScan increments the scan counter in the background; the response
// never waits on the counter backend.
func (s *Service) recordScan(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.scans.Add(1)
	go func() {
		defer s.scans.Done()
		ctx, cancel := context.WithTimeout(ctx, counterTimeout)
		defer cancel()
		if err := s.counter.Increment(ctx); err != nil {
			metrics.RecordScanCounterError()
			s.logger.Warn(ctx, "failed to record scan", logger.Error(err))
		}
	}()
}

// Wait blocks until every background scan increment has finished.
func (s *Service) Wait() {
	s.scans.Wait()
}
