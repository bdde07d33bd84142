package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/bulwark/internal/infrastructure/queue"
	"github.com/GriffinCanCode/bulwark/internal/infrastructure/resilience"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Retry     RetryConfig     `yaml:"retry"`
	Queue     QueueConfig     `yaml:"queue"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// BreakerConfig holds the default circuit breaker settings for lazily
// created breakers.
type BreakerConfig struct {
	TimeoutMs                int `envconfig:"BREAKER_TIMEOUT_MS" default:"5000" yaml:"timeout_ms"`
	ErrorThresholdPercentage int `envconfig:"BREAKER_ERROR_THRESHOLD_PCT" default:"50" yaml:"error_threshold_percentage"`
	ResetTimeoutMs           int `envconfig:"BREAKER_RESET_TIMEOUT_MS" default:"30000" yaml:"reset_timeout_ms"`
}

// Settings converts to breaker settings.
func (c BreakerConfig) Settings() resilience.Settings {
	return resilience.Settings{
		Timeout:                  time.Duration(c.TimeoutMs) * time.Millisecond,
		ErrorThresholdPercentage: c.ErrorThresholdPercentage,
		ResetTimeout:             time.Duration(c.ResetTimeoutMs) * time.Millisecond,
	}
}

// RetryConfig holds the default retry policy.
type RetryConfig struct {
	MaxAttempts    int     `envconfig:"RETRY_MAX_ATTEMPTS" default:"3" yaml:"max_attempts"`
	InitialDelayMs int     `envconfig:"RETRY_INITIAL_DELAY_MS" default:"1000" yaml:"initial_delay_ms"`
	MaxDelayMs     int     `envconfig:"RETRY_MAX_DELAY_MS" default:"10000" yaml:"max_delay_ms"`
	Factor         float64 `envconfig:"RETRY_FACTOR" default:"2" yaml:"factor"`
	Jitter         bool    `envconfig:"RETRY_JITTER" default:"true" yaml:"jitter"`
}

// Policy converts to a retry policy with the default predicate.
func (c RetryConfig) Policy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: time.Duration(c.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(c.MaxDelayMs) * time.Millisecond,
		Factor:       c.Factor,
		Jitter:       c.Jitter,
	}
}

// QueueConfig holds the default bounds for lazily created queues.
type QueueConfig struct {
	Concurrency int `envconfig:"QUEUE_CONCURRENCY" default:"5" yaml:"concurrency"`
	MaxSize     int `envconfig:"QUEUE_MAX_SIZE" default:"1000" yaml:"max_size"`
}

// Options converts to queue options.
func (c QueueConfig) Options() queue.Options {
	return queue.Options{
		Concurrency: c.Concurrency,
		MaxSize:     c.MaxSize,
	}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration for the ops server.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads environment configuration and overlays values from a
// YAML file; file values win over environment defaults.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Breaker: BreakerConfig{
			TimeoutMs:                5000,
			ErrorThresholdPercentage: 50,
			ResetTimeoutMs:           30000,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			MaxDelayMs:     10000,
			Factor:         2,
			Jitter:         true,
		},
		Queue: QueueConfig{
			Concurrency: 5,
			MaxSize:     1000,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
