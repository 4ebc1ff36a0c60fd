// Package model contains domain models passed between layers.
package model

// Vector holds the four independent 0-100 composition signals for one person.
// Fields are never required to sum to anything across people.
type Vector struct {
	SpatialPresence  float64 `json:"spatial_presence"`
	PostureDominance float64 `json:"posture_dominance"`
	FacialIntensity  float64 `json:"facial_intensity"`
	AttentionCapture float64 `json:"attention_capture"`
}

// Source names the estimator(s) that produced a person's final vector.
type Source string

// Signal sources.
const (
	SourceBlended    Source = "blended"
	SourceRemote     Source = "remote"
	SourceKeypoint   Source = "keypoint"
	SourcePositional Source = "positional"
)

// Person is one ranked subject of an analysis.
type Person struct {
	Label          string  `json:"label"`           // display name; annotation only, never scored
	Position       string  `json:"position"`        // left, center, right or free text from the remote service
	Signals        Vector  `json:"signals"`         // final signal vector
	CompositeScore float64 `json:"composite_score"` // always recomputed from Signals
	Rank           int     `json:"rank"`            // 1 = most dominant
	Source         Source  `json:"source"`          // estimator provenance
}

// Fallback records a degraded path taken during an analysis.
type Fallback struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Result is the outcome of a single analysis request.
type Result struct {
	AnalysisID       string     `json:"analysis_id"`
	People           []Person   `json:"people"` // rank ascending
	WinnerIndex      int        `json:"winner_index"`
	IsTie            bool       `json:"is_tie"`
	Explanation      string     `json:"explanation"`
	Disclaimer       string     `json:"disclaimer"`
	ProcessingTimeMS int64      `json:"processing_time_ms"`
	Fallbacks        []Fallback `json:"fallbacks,omitempty"`
}

// Disclaimer is the canonical server-side disclaimer. Any disclaimer text coming
// from a remote source is replaced with this value.
const Disclaimer = "This analysis is based on photographic composition signals only (spatial presence, posture, facial orientation, and attention capture). It does not reflect personal worth, attractiveness, social status, or any subjective judgment."
