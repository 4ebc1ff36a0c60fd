// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"time"

	"github.com/okian/framerank/internal/domain/keypoint"
)

// Counter backends.
const (
	CounterMemory = "memory"
	CounterRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// RemoteEnabled turns the remote vision step on. It needs GeminiAPIKey.
	RemoteEnabled bool   `koanf:"remote_enabled"`
	GeminiAPIKey  string `koanf:"gemini_api_key"`
	GeminiModel   string `koanf:"gemini_model"`

	// RemoteTimeoutMS bounds a single remote call.
	RemoteTimeoutMS int `koanf:"remote_timeout_ms" validate:"gte=1000,lte=120000"`

	// RemoteWorkers bounds concurrent remote calls; RemoteQueueSize bounds
	// how many more may wait for a worker before callers get RATE_LIMIT.
	RemoteWorkers   int `koanf:"remote_workers" validate:"gte=1"`
	RemoteQueueSize int `koanf:"remote_queue_size" validate:"gte=1"`

	// MaxTokens caps the remote response length; 0 keeps the model default.
	MaxTokens int `koanf:"max_tokens" validate:"gte=0,lte=65536"`

	// CounterBackend selects where the scan count lives: memory or redis.
	CounterBackend string `koanf:"counter_backend" validate:"oneof=memory redis"`
	RedisAddr      string `koanf:"redis_addr" validate:"required_if=CounterBackend redis"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db" validate:"gte=0"`
	CounterKey     string `koanf:"counter_key"`

	// RateLimitRPS and RateLimitBurst bound POST /analyze per client IP.
	// Zero RPS disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"gte=0"`

	// AttentionWeights and PostureWeights tune the keypoint sub-score blends.
	AttentionWeights keypoint.Weights `koanf:"attention_weights"`
	PostureWeights   keypoint.Weights `koanf:"posture_weights"`
}

// New creates a Config with defaults.
func New() *Config {
	tuning := keypoint.DefaultTuning()
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		RemoteEnabled:    true,
		GeminiModel:      "gemini-1.5-flash",
		RemoteTimeoutMS:  25_000,
		RemoteWorkers:    4,
		RemoteQueueSize:  16,
		MaxTokens:        2048,
		CounterBackend:   CounterMemory,
		RedisAddr:        "localhost:6379",
		CounterKey:       "framerank:scans",
		RateLimitRPS:     2,
		RateLimitBurst:   5,
		AttentionWeights: tuning.Attention,
		PostureWeights:   tuning.Posture,
	}
}

// RemoteTimeout returns RemoteTimeoutMS as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutMS) * time.Millisecond
}
