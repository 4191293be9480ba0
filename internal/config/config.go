// Package config loads and validates feedlint configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig   `mapstructure:"server"`
	Fetch      FetchConfig    `mapstructure:"fetch"`
	Validation ValidateConfig `mapstructure:"validation"`
	Logging    LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// FetchConfig governs document retrieval.
type FetchConfig struct {
	UserAgent           string `mapstructure:"user_agent"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`
	MaxBodyBytes        int64  `mapstructure:"max_body_bytes"`
	ProbeRedirects      bool   `mapstructure:"probe_redirects"`
}

// ValidateConfig sets per-run defaults overridable per request.
type ValidateConfig struct {
	FirstOccurrenceOnly bool   `mapstructure:"first_occurrence_only"`
	GroupEvents         bool   `mapstructure:"group_events"`
	FallbackEncoding    string `mapstructure:"fallback_encoding"`
	RDFPass             bool   `mapstructure:"rdf_pass"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FEEDLINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.user_agent", "feedlint/1.0")
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.probe_timeout_seconds", 10)
	v.SetDefault("fetch.max_body_bytes", 5000000)
	v.SetDefault("fetch.probe_redirects", true)
	v.SetDefault("validation.first_occurrence_only", false)
	v.SetDefault("validation.group_events", false)
	v.SetDefault("validation.fallback_encoding", "utf-8")
	v.SetDefault("validation.rdf_pass", true)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0")
	}
	if c.Validation.FallbackEncoding == "" {
		return fmt.Errorf("validation.fallback_encoding must not be empty")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// ProbeTimeout converts the redirect-probe timeout into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Fetch.ProbeTimeoutSeconds) * time.Second
}
