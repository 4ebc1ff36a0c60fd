package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read before the layered config.
const (
	envPrefix   = "FRAMERANK_"
	envConfig   = "FRAMERANK_CONFIG"
	envDotEnv   = "FRAMERANK_ENV_FILE"
	defaultDotE = ".env"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FRAMERANK_CONFIG is set
//  3. env (prefix FRAMERANK_), including values from an optional .env file
//
// Nested keys use a double underscore: FRAMERANK_POSTURE_WEIGHTS__A.
func Load(ctx context.Context) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// FRAMERANK_RATE_LIMIT_RPS -> rate_limit_rps, FRAMERANK_POSTURE_WEIGHTS__A -> posture_weights.a
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate(_ context.Context) error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.AttentionWeights.A+c.AttentionWeights.B+c.AttentionWeights.C <= 0 {
		return fmt.Errorf("%w: attention_weights must not all be zero", ErrInvalidConfig)
	}
	if c.PostureWeights.A+c.PostureWeights.B+c.PostureWeights.C <= 0 {
		return fmt.Errorf("%w: posture_weights must not all be zero", ErrInvalidConfig)
	}
	return nil
}

// loadDotEnv reads FRAMERANK_ENV_FILE (default .env) into the environment when
// it exists. Variables already set win.
func loadDotEnv() error {
	path := os.Getenv(envDotEnv)
	if path == "" {
		path = defaultDotE
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
	}
	return nil
}
