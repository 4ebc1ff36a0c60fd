// Package replay drives a running analysis server with fixture requests and
// checks every ranked response for internal consistency.
package replay

import (
	"time"

	"github.com/okian/framerank/internal/domain/types"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Workers  int           // Number of concurrent requests
	Repeat   int           // Times each fixture is sent
	Timeout  time.Duration // HTTP request timeout
	Progress bool          // Draw a progress bar on stderr
}

// Fixture is one named request. ImageFile, when set, is read and base64
// encoded into Request.Image.
type Fixture struct {
	Name      string               `json:"name"`
	ImageFile string               `json:"image_file,omitempty"`
	Request   types.AnalyzeRequest `json:"request"`
}

// Outcome is the result of sending one fixture.
type Outcome struct {
	Fixture    string
	Status     int
	Response   types.Response
	Violations []string
	Err        error
	Latency    time.Duration
}

// Summary aggregates a replay run.
type Summary struct {
	Sent        int
	Ranked      int
	Empty       int
	Rejected    map[string]int // by failure code
	Failed      int            // transport errors
	Violations  int
	CountBefore int64
	CountAfter  int64
	Duration    time.Duration
}
