package crud

import "time"

// Config holds configuration for the Dao
type Config struct {
	// Name is the signal source and log name
	// default: "objsync"
	Name string `mapstructure:"name" yaml:"name"`
	// StaleAfter is the age after which a cached entity is refetched
	// default: 60s
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	// MaxInFlight bounds concurrent requests when no limiter is injected
	// default: 16
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight"`
	// BackgroundTimeout bounds work that outlives its caller: background
	// refreshes and fetches shared between callers
	// default: 30s
	BackgroundTimeout time.Duration `mapstructure:"background_timeout" yaml:"background_timeout"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Name:              "objsync",
		StaleAfter:        60 * time.Second,
		MaxInFlight:       16,
		BackgroundTimeout: 30 * time.Second,
	}
}

// MergeDefaults fills unset fields from DefaultConfig and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = defaults.MaxInFlight
	}
	if c.BackgroundTimeout == 0 {
		c.BackgroundTimeout = defaults.BackgroundTimeout
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidConfig("name is required")
	}
	if c.StaleAfter < 0 {
		return ErrInvalidConfig("stale_after must not be negative")
	}
	if c.MaxInFlight <= 0 {
		return ErrInvalidConfig("max_in_flight must be greater than 0")
	}
	if c.BackgroundTimeout <= 0 {
		return ErrInvalidConfig("background_timeout must be greater than 0")
	}
	return nil
}
