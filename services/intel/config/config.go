// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads, validates, and hot-reloads the service
// configuration. Structural settings (listen address, cache backend,
// credentials) are read once at startup; tunables (retry, breaker,
// per-family knobs) are re-read through the Provider on every request.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// ErrNoCredentials indicates that no upstream family has a credential,
// which would make every report fully degraded.
var ErrNoCredentials = errors.New("no upstream family has a credential configured")

var validate = validator.New()

// Duration wraps time.Duration for yaml "10s" syntax.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the Go duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr" validate:"required"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// CacheConfig selects and sizes the cache backend.
type CacheConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=memory badger"`
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries" validate:"gte=0"`
}

// BreakerConfig holds the circuit breaker tunables.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold" validate:"gte=1"`
	Window           Duration `yaml:"window"`
	Cooldown         Duration `yaml:"cooldown"`
}

// RetryConfig holds the retry tunables.
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	BackoffFactor  float64  `yaml:"backoff_factor" validate:"gte=1"`
	JitterFactor   float64  `yaml:"jitter_factor" validate:"gte=0,lt=1"`
}

// FamilyConfig configures one upstream family. A family with an empty
// credential is simply not served; it is an error only when every family
// is credential-less.
type FamilyConfig struct {
	BaseURL       string   `yaml:"base_url"`
	APIKey        string   `yaml:"api_key"`
	QueryTemplate string   `yaml:"query_template"`
	TTL           Duration `yaml:"ttl"`
	Timeout       Duration `yaml:"timeout"`
	CostUnits     float64  `yaml:"cost_units" validate:"gte=0"`
	RateLimit     float64  `yaml:"rate_limit" validate:"gte=0"`
	RateBurst     int      `yaml:"rate_burst" validate:"gte=0"`
	MaxResults    int      `yaml:"max_results" validate:"gte=0,lte=100"`
}

// Enabled reports whether this family can be served.
func (f FamilyConfig) Enabled() bool {
	return f.APIKey != "" && f.BaseURL != ""
}

// Config is the whole service configuration.
type Config struct {
	Server   ServerConfig                     `yaml:"server"`
	Cache    CacheConfig                      `yaml:"cache"`
	Breaker  BreakerConfig                    `yaml:"breaker"`
	Retry    RetryConfig                      `yaml:"retry"`
	Families map[upstream.Family]FamilyConfig `yaml:"families" validate:"dive"`
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	families := make(map[upstream.Family]FamilyConfig, 4)
	families[upstream.FamilyNews] = FamilyConfig{
		QueryTemplate: "{subject}",
		TTL:           Duration(15 * time.Minute),
		Timeout:       Duration(upstream.DefaultNewsTimeout),
		CostUnits:     1,
	}
	families[upstream.FamilySearch] = FamilyConfig{
		QueryTemplate: "{subject}",
		TTL:           Duration(15 * time.Minute),
		Timeout:       Duration(upstream.DefaultSearchTimeout),
		CostUnits:     1,
	}
	families[upstream.FamilyChat] = FamilyConfig{
		QueryTemplate: "Summarize recent competitive developments for {subject}.",
		TTL:           Duration(30 * time.Minute),
		Timeout:       Duration(upstream.DefaultChatTimeout),
		CostUnits:     5,
	}
	families[upstream.FamilyResearch] = FamilyConfig{
		QueryTemplate: "Deep competitive analysis of {subject}.",
		TTL:           Duration(6 * time.Hour),
		Timeout:       Duration(upstream.DefaultResearchTimeout),
		CostUnits:     25,
	}

	return Config{
		Server: ServerConfig{ListenAddr: ":8080"},
		Cache:  CacheConfig{Backend: "memory"},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Window:           Duration(60 * time.Second),
			Cooldown:         Duration(30 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: Duration(500 * time.Millisecond),
			MaxBackoff:     Duration(10 * time.Second),
			BackoffFactor:  2.0,
			JitterFactor:   0.2,
		},
		Families: families,
	}
}

// Load reads the configuration file at path, layers it over the
// defaults, applies environment credential overrides, and validates the
// result. An empty path loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		// Family entries in the file replace the map value wholesale;
		// refill omitted knobs from the defaults.
		fillFamilyDefaults(&cfg)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fillFamilyDefaults(cfg *Config) {
	defaults := Default().Families
	if cfg.Families == nil {
		cfg.Families = defaults
		return
	}
	for _, family := range upstream.Families() {
		fc, ok := cfg.Families[family]
		if !ok {
			cfg.Families[family] = defaults[family]
			continue
		}
		def := defaults[family]
		if fc.QueryTemplate == "" {
			fc.QueryTemplate = def.QueryTemplate
		}
		if fc.TTL == 0 {
			fc.TTL = def.TTL
		}
		if fc.Timeout == 0 {
			fc.Timeout = def.Timeout
		}
		if fc.CostUnits == 0 {
			fc.CostUnits = def.CostUnits
		}
		cfg.Families[family] = fc
	}
}

// applyEnvOverrides lets credentials and endpoints come from the
// environment so they stay out of config files:
// SIGHTLINE_NEWS_API_KEY, SIGHTLINE_CHAT_BASE_URL, and so on.
func applyEnvOverrides(cfg *Config) {
	for _, family := range upstream.Families() {
		fc := cfg.Families[family]
		prefix := "SIGHTLINE_" + strings.ToUpper(string(family))
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			fc.APIKey = v
		}
		if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
			fc.BaseURL = v
		}
		cfg.Families[family] = fc
	}
}

// Validate checks structural and semantic constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.Backend == "badger" && c.Cache.Path == "" {
		return errors.New("cache.path is required for the badger backend")
	}

	anyEnabled := false
	for _, family := range upstream.Families() {
		fc, ok := c.Families[family]
		if !ok {
			continue
		}
		if fc.APIKey != "" && fc.BaseURL == "" {
			return fmt.Errorf("family %s has an api key but no base_url", family)
		}
		if fc.Enabled() {
			anyEnabled = true
		}
	}
	if !anyEnabled {
		return ErrNoCredentials
	}
	return nil
}
