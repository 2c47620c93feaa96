// Package config loads kaizen/safety/orchestrator configuration with
// a four-layer priority: defaults, then a YAML file, then environment
// variables, then functional options — each layer overriding the one
// before it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itsneelabh/kaizen/safety"
)

// KaizenConfig mirrors the kaizen.Config fields that are meaningful to
// load from a file/environment (kaizen.Config itself stays free of a
// YAML dependency).
type KaizenConfig struct {
	DetectionInterval        time.Duration `yaml:"detectionInterval"`
	MinSampleSize            int           `yaml:"minSampleSize"`
	MaxConcurrentExperiments int           `yaml:"maxConcurrentExperiments"`
	DeploymentThreshold      float64       `yaml:"deploymentThreshold"`
	MaxRetries               int           `yaml:"maxRetries"`
}

// OrchestratorConfig mirrors orchestrator.Config's loadable fields.
type OrchestratorConfig struct {
	ExecutionInterval time.Duration `yaml:"executionInterval"`
	MaxCycles         int           `yaml:"maxCycles"`
}

// DecisionConfig mirrors decision.Config's loadable fields.
type DecisionConfig struct {
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
}

// Config is the top-level loadable configuration document.
type Config struct {
	Kaizen       KaizenConfig                `yaml:"kaizen"`
	Orchestrator OrchestratorConfig          `yaml:"orchestrator"`
	Decision     DecisionConfig              `yaml:"decision"`
	SafetyBounds map[string]safety.BoundSpec `yaml:"safetyBounds"`
}

// Default returns the built-in defaults, matching kaizen.DefaultConfig,
// orchestrator's 100ms default interval, and decision's 0.6 threshold.
func Default() Config {
	return Config{
		Kaizen: KaizenConfig{
			DetectionInterval:        60 * time.Second,
			MinSampleSize:            10,
			MaxConcurrentExperiments: 5,
			DeploymentThreshold:      0.95,
			MaxRetries:               3,
		},
		Orchestrator: OrchestratorConfig{
			ExecutionInterval: 100 * time.Millisecond,
		},
		Decision: DecisionConfig{
			ConfidenceThreshold: 0.6,
		},
	}
}

// Option mutates a Config during Load, applied after the file layer
// and the environment layer so callers always have the final word.
type Option func(*Config)

// WithDetectionInterval overrides Kaizen.DetectionInterval.
func WithDetectionInterval(d time.Duration) Option {
	return func(c *Config) { c.Kaizen.DetectionInterval = d }
}

// WithMaxConcurrentExperiments overrides Kaizen.MaxConcurrentExperiments.
func WithMaxConcurrentExperiments(n int) Option {
	return func(c *Config) { c.Kaizen.MaxConcurrentExperiments = n }
}

// WithExecutionInterval overrides Orchestrator.ExecutionInterval.
func WithExecutionInterval(d time.Duration) Option {
	return func(c *Config) { c.Orchestrator.ExecutionInterval = d }
}

// WithConfidenceThreshold overrides Decision.ConfidenceThreshold.
func WithConfidenceThreshold(t float64) Option {
	return func(c *Config) { c.Decision.ConfidenceThreshold = t }
}

// Load builds a Config starting from Default, layering in path's YAML
// document (if path is non-empty), then environment variables, then
// opts. A missing file at path is an error; an empty path skips the
// file layer entirely.
func Load(path string, opts ...Option) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides individual fields from well-known environment
// variables. Unset variables leave the existing value untouched.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("KAIZEN_DETECTION_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Kaizen.DetectionInterval = d
		}
	}
	if v, ok := os.LookupEnv("KAIZEN_MIN_SAMPLE_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Kaizen.MinSampleSize = n
		}
	}
	if v, ok := os.LookupEnv("KAIZEN_MAX_CONCURRENT_EXPERIMENTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Kaizen.MaxConcurrentExperiments = n
		}
	}
	if v, ok := os.LookupEnv("KAIZEN_DEPLOYMENT_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Kaizen.DeploymentThreshold = f
		}
	}
	if v, ok := os.LookupEnv("KAIZEN_MAX_RETRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Kaizen.MaxRetries = n
		}
	}
	if v, ok := os.LookupEnv("KAIZEN_EXECUTION_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.ExecutionInterval = d
		}
	}
	if v, ok := os.LookupEnv("KAIZEN_MAX_CYCLES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxCycles = n
		}
	}
	if v, ok := os.LookupEnv("KAIZEN_CONFIDENCE_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Decision.ConfidenceThreshold = f
		}
	}
}
