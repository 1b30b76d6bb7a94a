package config

import (
	"time"

	"github.com/fluxadm/analyzer/internal/analysis/breaker"
	"github.com/fluxadm/analyzer/internal/analysis/retry"
	"github.com/fluxadm/analyzer/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Providers []ProviderConfig `yaml:"providers"`
	Cache     CacheConfig      `yaml:"cache"`
	Logging   LoggingConfig    `yaml:"logging"`
	Database  postgres.Config  `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CacheConfig holds result cache settings. An empty URL disables caching.
type CacheConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	TTL      string `yaml:"ttl"` // e.g. "1h"
}

// ProviderConfig holds settings for one AI provider in the chain.
// Providers are tried in the order they appear in the config.
type ProviderConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // openai, anthropic, local

	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Endpoint    string  `yaml:"endpoint"` // base URL; required for local
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// Timeout bounds a single call, e.g. "60s". Local models get a
	// longer default since inference on modest hardware is slow.
	Timeout string `yaml:"timeout"`

	// HealthAddr is an optional gRPC health endpoint for local gateways,
	// probed before each call.
	HealthAddr string `yaml:"health_addr"`

	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// RetryConfig holds per-provider retry settings.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"` // e.g. "1s"
	MaxDelay    string `yaml:"max_delay"`  // e.g. "30s"
}

// BreakerConfig holds per-provider circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int    `yaml:"failure_threshold"`
	RecoveryTimeout  string `yaml:"recovery_timeout"` // e.g. "30s"
}

// RetryPolicy converts the config into a retry policy, applying defaults
// for unset fields.
func (p ProviderConfig) RetryPolicy() retry.Policy {
	pol := retry.DefaultPolicy
	if p.Retry.MaxAttempts > 0 {
		pol.MaxAttempts = p.Retry.MaxAttempts
	}
	if d := parseDuration(p.Retry.BaseDelay); d > 0 {
		pol.BaseDelay = d
	}
	if d := parseDuration(p.Retry.MaxDelay); d > 0 {
		pol.MaxDelay = d
	}
	return pol
}

// BreakerSettings converts the config into breaker settings, applying
// defaults for unset fields.
func (p ProviderConfig) BreakerSettings() breaker.Config {
	cfg := breaker.DefaultConfig
	if p.Breaker.FailureThreshold > 0 {
		cfg.FailureThreshold = p.Breaker.FailureThreshold
	}
	if d := parseDuration(p.Breaker.RecoveryTimeout); d > 0 {
		cfg.RecoveryTimeout = d
	}
	return cfg
}

// CallTimeout returns the per-call timeout for this provider.
func (p ProviderConfig) CallTimeout() time.Duration {
	if d := parseDuration(p.Timeout); d > 0 {
		return d
	}
	if p.Type == "local" {
		return 180 * time.Second
	}
	return 60 * time.Second
}

// CacheTTL returns the configured cache TTL, or zero when unset.
func (c CacheConfig) CacheTTL() time.Duration {
	return parseDuration(c.TTL)
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
