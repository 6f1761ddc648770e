package rest

import (
	"net/url"
	"time"
)

// Config holds configuration for the HTTP transport
type Config struct {
	// BaseURL is the server root, e.g. "https://api.example.com/v1" (required)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Timeout bounds a single request including reading the answer
	// default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// UserAgent is sent with every request
	// default: "objsync"
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// MaxResponseBytes caps the size of an answer body
	// default: 16MiB
	MaxResponseBytes int64 `mapstructure:"max_response_bytes" yaml:"max_response_bytes"`
	// Token is optional
	Token TokenSource `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:          30 * time.Second,
		UserAgent:        "objsync",
		MaxResponseBytes: 16 << 20,
	}
}

// MergeDefaults fills unset fields from DefaultConfig and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = defaults.MaxResponseBytes
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidConfig("base_url must be an absolute URL")
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig("timeout must be greater than 0")
	}
	if c.MaxResponseBytes <= 0 {
		return ErrInvalidConfig("max_response_bytes must be greater than 0")
	}
	return nil
}
