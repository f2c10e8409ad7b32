package gateway

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	DefaultModel string           `yaml:"default_model"`
	Fallbacks    []FallbackChain  `yaml:"fallbacks"`
	Providers    []ProviderConfig `yaml:"providers"`
	Limits       Limits           `yaml:"limits"`
}

// FallbackChain maps a requested model to the ordered list of candidate
// models attempted for it. Models without a chain get a single-candidate
// chain of themselves.
type FallbackChain struct {
	Model      string   `yaml:"model"`
	Candidates []string `yaml:"candidates"`
}

// ProviderConfig configures pacing for one upstream provider.
type ProviderConfig struct {
	Name        string   `yaml:"name"`
	MinInterval Duration `yaml:"min_interval"`
}

// Limits holds the concurrency, timeout and billing bounds.
// Zero values are replaced with the defaults below.
type Limits struct {
	ConcurrencyLimit     int      `yaml:"concurrency_limit"`
	QueueDepth           int      `yaml:"queue_depth"`
	QueueWaitTimeout     Duration `yaml:"queue_wait_timeout"`
	JobDeadline          Duration `yaml:"job_deadline"`
	CallTimeout          Duration `yaml:"call_timeout"`
	UserMinInterval      Duration `yaml:"user_min_interval"`
	RateMapHighWater     int      `yaml:"rate_map_high_water"`
	SafetyCapUSD         float64  `yaml:"safety_cap_usd"`
	DefaultMarginPercent float64  `yaml:"default_margin_percent"`
	FallbackCreditRate   float64  `yaml:"fallback_credit_rate"`
}

// Defaults for Limits.
const (
	DefaultConcurrencyLimit     = 30
	DefaultQueueDepth           = 1024
	DefaultQueueWaitTimeout     = 120 * time.Second
	DefaultJobDeadline          = 90 * time.Second
	DefaultCallTimeout          = 60 * time.Second
	DefaultUserMinInterval      = 100 * time.Millisecond
	DefaultRateMapHighWater     = 5000
	DefaultSafetyCapUSD         = 0.25
	DefaultMarginPercent        = 60
	DefaultFallbackCreditRate   = 16300 // credits per USD when no rate is configured
)

func (l *Limits) applyDefaults() {
	if l.ConcurrencyLimit <= 0 {
		l.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if l.QueueDepth <= 0 {
		l.QueueDepth = DefaultQueueDepth
	}
	if l.QueueWaitTimeout <= 0 {
		l.QueueWaitTimeout = Duration(DefaultQueueWaitTimeout)
	}
	if l.JobDeadline <= 0 {
		l.JobDeadline = Duration(DefaultJobDeadline)
	}
	if l.CallTimeout <= 0 {
		l.CallTimeout = Duration(DefaultCallTimeout)
	}
	if l.UserMinInterval <= 0 {
		l.UserMinInterval = Duration(DefaultUserMinInterval)
	}
	if l.RateMapHighWater <= 0 {
		l.RateMapHighWater = DefaultRateMapHighWater
	}
	if l.SafetyCapUSD <= 0 {
		l.SafetyCapUSD = DefaultSafetyCapUSD
	}
	if l.DefaultMarginPercent <= 0 {
		l.DefaultMarginPercent = DefaultMarginPercent
	}
	if l.FallbackCreditRate <= 0 {
		l.FallbackCreditRate = DefaultFallbackCreditRate
	}
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "100ms" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("gateway: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("gateway: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("gateway: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Fallbacks))
	for i, f := range c.Fallbacks {
		if f.Model == "" {
			return fmt.Errorf("gateway: config: fallbacks[%d]: model is required", i)
		}
		if seen[f.Model] {
			return fmt.Errorf("gateway: config: duplicate fallback chain for %q", f.Model)
		}
		seen[f.Model] = true
		if len(f.Candidates) == 0 {
			return fmt.Errorf("gateway: config: fallbacks[%d] (%s): at least one candidate is required", i, f.Model)
		}
	}

	names := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("gateway: config: providers[%d]: name is required", i)
		}
		if names[p.Name] {
			return fmt.Errorf("gateway: config: duplicate provider %q", p.Name)
		}
		names[p.Name] = true
		if p.MinInterval < 0 {
			return fmt.Errorf("gateway: config: providers[%d] (%s): min_interval must not be negative", i, p.Name)
		}
	}

	return nil
}
