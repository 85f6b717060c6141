// Package config provides 12-factor configuration for the webview proxy.
//
// Configuration is loaded from environment variables with sensible defaults;
// an optional YAML file (the -config flag) overrides the environment for
// development setups.
//
// Environment Variables:
//   - PORT, HOST
//   - RESOLVE_TIMEOUT_MS, FETCH_TIMEOUT_MS, ALLOWED_PATHS, FALLBACK_ROOT
//   - LOCALHOST_PROBE
//   - CACHE_TTL_MS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// ProxyConfig holds resource proxying configuration.
type ProxyConfig struct {
	// ResolveTimeoutMS bounds how long unanswered correlation entries are
	// tracked before cleanup.
	ResolveTimeoutMS int `envconfig:"RESOLVE_TIMEOUT_MS" default:"30000" yaml:"resolve_timeout_ms"`
	// FetchTimeoutMS bounds how long a webview request waits for the host.
	FetchTimeoutMS int `envconfig:"FETCH_TIMEOUT_MS" default:"10000" yaml:"fetch_timeout_ms"`
	// AllowedPaths restricts proxied paths to doublestar globs; empty
	// allows everything.
	AllowedPaths []string `envconfig:"ALLOWED_PATHS" yaml:"allowed_paths"`
	// FallbackRoot optionally points at built-in webview assets.
	FallbackRoot string `envconfig:"FALLBACK_ROOT" yaml:"fallback_root"`
	// LocalhostProbe toggles reachability probes before redirects.
	LocalhostProbe bool `envconfig:"LOCALHOST_PROBE" default:"true" yaml:"localhost_probe"`
}

// CacheConfig holds content cache configuration.
type CacheConfig struct {
	TTLMS int `envconfig:"CACHE_TTL_MS" default:"300000" yaml:"ttl_ms"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"200" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"400" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
	// Global applies one shared bucket instead of per-IP buckets, for
	// deployments where all webviews sit behind one proxy hop.
	Global bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false" yaml:"global"`
}

// ResolveTimeout returns the correlation cleanup timeout as a duration.
func (c ProxyConfig) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMS) * time.Millisecond
}

// FetchTimeout returns the per-request host wait as a duration.
func (c ProxyConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// TTL returns the cache entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMS) * time.Millisecond
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads environment configuration and overlays a YAML file on top.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Proxy: ProxyConfig{
			ResolveTimeoutMS: 30000,
			FetchTimeoutMS:   10000,
			LocalhostProbe:   true,
		},
		Cache: CacheConfig{
			TTLMS: 300000,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 200,
			Burst:             400,
			Enabled:           true,
		},
	}
}
