package service

// State is a step of the analysis state machine.
type State string

// Analysis states. Ranked, Failed and Empty are terminal.
const (
	StateIdle      State = "idle"
	StateDetecting State = "detecting"
	StateLabeling  State = "labeling"
	StateAnalyzing State = "analyzing"
	StateRanked    State = "ranked"
	StateFailed    State = "failed"
	StateEmpty     State = "empty"
)

// Fallback stages.
const (
	stageDetecting = "detecting"
	stageRemote    = "remote"
	stageLocal     = "local"
	stageBlending  = "blending"
)
