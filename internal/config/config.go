// Package config provides run configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds all run configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
// A Config is built once at process start and never mutated afterwards.
type Config struct {
	ProjectKey  string // Platform project identifier
	APIKey      string // REST API access token
	SDKKey      string // Server-side SDK key used for evaluations and events
	APIURL      string // REST API base URL
	Environment string // Environment inspected for measured rollouts

	ExposureTag         string // Only flags carrying this tag get exposure evaluations
	ExposureEvaluations int    // Evaluations per tagged flag

	EventsCapacity int           // SDK pending-event buffer size
	SDKInitTimeout time.Duration // How long to wait for the SDK to initialize
	HTTPTimeout    time.Duration // REST API request timeout

	RolloutPollInterval time.Duration // Wait between rollout readiness polls
	RolloutPollAttempts int           // Readiness polls before a producer aborts
	RolloutCheckEvery   int           // Interactions between rollout status re-checks
	RolloutFlushEvery   int           // Interactions between guarded-rollout flushes
	RolloutFlushPause   time.Duration // Pause after each guarded-rollout flush
	InteractionDelay    time.Duration // Delay between guarded-rollout interactions

	ExperimentInteractions int // Interactions per experiment batch
	ExperimentFlushEvery   int // Interactions between experiment flushes

	RandSeed    uint64 // 0 means seed from crypto/rand
	LogLevel    string // zerolog level name
	LogFormat   string // console or json
	MetricsAddr string // Prometheus listener address; empty disables it
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
//
// Load does not check that secrets are present; commands call RequireAPI or check
// SDKKey themselves because the severity of each absence differs.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)

	return &Config{
		ProjectKey:             v.GetString("LD_PROJECT_KEY"),
		APIKey:                 v.GetString("LD_API_KEY"),
		SDKKey:                 v.GetString("LD_SDK_KEY"),
		APIURL:                 v.GetString("LD_API_URL"),
		Environment:            v.GetString("LD_ENVIRONMENT"),
		ExposureTag:            v.GetString("EXPOSURE_TAG"),
		ExposureEvaluations:    v.GetInt("EXPOSURE_EVALUATIONS"),
		EventsCapacity:         v.GetInt("EVENTS_CAPACITY"),
		SDKInitTimeout:         v.GetDuration("SDK_INIT_TIMEOUT"),
		HTTPTimeout:            v.GetDuration("HTTP_TIMEOUT"),
		RolloutPollInterval:    v.GetDuration("ROLLOUT_POLL_INTERVAL"),
		RolloutPollAttempts:    v.GetInt("ROLLOUT_POLL_ATTEMPTS"),
		RolloutCheckEvery:      v.GetInt("ROLLOUT_CHECK_EVERY"),
		RolloutFlushEvery:      v.GetInt("ROLLOUT_FLUSH_EVERY"),
		RolloutFlushPause:      v.GetDuration("ROLLOUT_FLUSH_PAUSE"),
		InteractionDelay:       v.GetDuration("INTERACTION_DELAY"),
		ExperimentInteractions: v.GetInt("EXPERIMENT_INTERACTIONS"),
		ExperimentFlushEvery:   v.GetInt("EXPERIMENT_FLUSH_EVERY"),
		RandSeed:               v.GetUint64("RAND_SEED"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
		MetricsAddr:            v.GetString("METRICS_ADDR"),
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("LD_API_URL", "https://app.launchdarkly.com/api/v2")
	v.SetDefault("LD_ENVIRONMENT", "production")
	v.SetDefault("EXPOSURE_TAG", "togglestore")
	v.SetDefault("EXPOSURE_EVALUATIONS", 100)
	v.SetDefault("EVENTS_CAPACITY", 5000)
	v.SetDefault("SDK_INIT_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("ROLLOUT_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("ROLLOUT_POLL_ATTEMPTS", 6)
	v.SetDefault("ROLLOUT_CHECK_EVERY", 500)
	v.SetDefault("ROLLOUT_FLUSH_EVERY", 200)
	v.SetDefault("ROLLOUT_FLUSH_PAUSE", 100*time.Millisecond)
	v.SetDefault("INTERACTION_DELAY", 20*time.Millisecond)
	v.SetDefault("EXPERIMENT_INTERACTIONS", 3000)
	v.SetDefault("EXPERIMENT_FLUSH_EVERY", 100)
	v.SetDefault("RAND_SEED", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("METRICS_ADDR", "")
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks the tuning values. It does not look at secrets.
//
// Validation Rules:
//  1. LD_API_URL must be an absolute http(s) URL
//  2. LD_ENVIRONMENT and EXPOSURE_TAG must be non-empty
//  3. Every count and period must be positive (durations may be zero)
//  4. LOG_FORMAT must be "console" or "json"
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{Field: "LD_API_URL", Message: fmt.Sprintf("must be an absolute http(s) URL, got '%s'", c.APIURL)}
	}
	if c.Environment == "" {
		return ValidationError{Field: "LD_ENVIRONMENT", Message: "environment key cannot be empty"}
	}
	if c.ExposureTag == "" {
		return ValidationError{Field: "EXPOSURE_TAG", Message: "exposure tag cannot be empty"}
	}

	positive := []struct {
		field string
		value int
	}{
		{"EXPOSURE_EVALUATIONS", c.ExposureEvaluations},
		{"EVENTS_CAPACITY", c.EventsCapacity},
		{"ROLLOUT_POLL_ATTEMPTS", c.RolloutPollAttempts},
		{"ROLLOUT_CHECK_EVERY", c.RolloutCheckEvery},
		{"ROLLOUT_FLUSH_EVERY", c.RolloutFlushEvery},
		{"EXPERIMENT_INTERACTIONS", c.ExperimentInteractions},
		{"EXPERIMENT_FLUSH_EVERY", c.ExperimentFlushEvery},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return ValidationError{Field: p.field, Message: fmt.Sprintf("must be positive, got %d", p.value)}
		}
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"ROLLOUT_POLL_INTERVAL", c.RolloutPollInterval},
		{"ROLLOUT_FLUSH_PAUSE", c.RolloutFlushPause},
		{"INTERACTION_DELAY", c.InteractionDelay},
		{"SDK_INIT_TIMEOUT", c.SDKInitTimeout},
		{"HTTP_TIMEOUT", c.HTTPTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return ValidationError{Field: d.field, Message: fmt.Sprintf("cannot be negative, got %s", d.value)}
		}
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return ValidationError{Field: "LOG_FORMAT", Message: fmt.Sprintf("must be 'console' or 'json', got '%s'", c.LogFormat)}
	}
	return nil
}

// RequireAPI reports the absence of the REST API credentials. Commands that talk to
// the platform API treat this as fatal.
func (c *Config) RequireAPI() error {
	if c.ProjectKey == "" {
		return ValidationError{Field: "LD_PROJECT_KEY", Message: "project key must be set"}
	}
	if c.APIKey == "" {
		return ValidationError{Field: "LD_API_KEY", Message: "API key must be set"}
	}
	return nil
}
