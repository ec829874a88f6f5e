// Package config defines client configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Default client configuration.
const (
	defaultBaseURL          = "http://localhost:5000"
	defaultRequestTimeoutMS = 10_000
	defaultMetricsAddr      = ":9091"
)

// Config contains process configuration for the console client.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// BaseURL is the GradePredict backend base URL.
	BaseURL string `koanf:"base_url"`

	// RequestTimeoutMS bounds every backend HTTP call.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// MetricsAddr configures the Prometheus exposition listen address.
	MetricsAddr string `koanf:"metrics_addr"`

	// MetricsEnabled toggles the exposition endpoint and collection.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		BaseURL:          defaultBaseURL,
		RequestTimeoutMS: defaultRequestTimeoutMS,
		MetricsAddr:      defaultMetricsAddr,
		MetricsEnabled:   true,
	}
}

// RequestTimeout returns the request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}
