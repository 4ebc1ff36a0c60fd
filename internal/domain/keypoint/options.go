package keypoint

// Weights is a three-way split used by a composite sub-signal.
type Weights struct {
	A float64 `koanf:"a"`
	B float64 `koanf:"b"`
	C float64 `koanf:"c"`
}

// sum returns the total of the three weights.
func (w Weights) sum() float64 { return w.A + w.B + w.C }

// Tuning holds the sub-weights that earlier revisions of the heuristic disagreed
// on. They are exposed for tuning rather than fixed.
type Tuning struct {
	// Posture is expansion / spine straightness / shoulder level.
	Posture Weights
	// Attention is centeredness / facial intensity / spatial presence.
	Attention Weights
}

// DefaultTuning returns the most fully specified weight splits.
func DefaultTuning() Tuning {
	return Tuning{
		Posture:   Weights{A: 0.35, B: 0.40, C: 0.25},
		Attention: Weights{A: 0.45, B: 0.30, C: 0.25},
	}
}

// Option applies a configuration option to the Deriver.
type Option func(*Deriver)

// WithPostureWeights overrides the posture sub-weights. Splits that do not sum
// to a positive total are ignored.
func WithPostureWeights(w Weights) Option {
	return func(d *Deriver) {
		if w.sum() > 0 {
			d.tuning.Posture = w
		}
	}
}

// WithAttentionWeights overrides the attention sub-weights. Splits that do not
// sum to a positive total are ignored.
func WithAttentionWeights(w Weights) Option {
	return func(d *Deriver) {
		if w.sum() > 0 {
			d.tuning.Attention = w
		}
	}
}
