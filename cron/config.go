package cron

import "time"

// Config holds configuration for the scheduler
type Config struct {
	// Location is the time zone specs are evaluated in
	// default: "UTC"
	Location string `mapstructure:"location" yaml:"location"`
	// TaskTimeout bounds every task run
	// default: 1m
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
	// AllowOverlap lets a job start while its previous run is still going;
	// by default such runs are skipped
	AllowOverlap bool `mapstructure:"allow_overlap" yaml:"allow_overlap"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Location:    "UTC",
		TaskTimeout: time.Minute,
	}
}

// MergeDefaults fills unset fields from DefaultConfig and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Location == "" {
		c.Location = defaults.Location
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = defaults.TaskTimeout
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Location); err != nil {
		return ErrInvalidConfig("unknown location " + c.Location)
	}
	if c.TaskTimeout <= 0 {
		return ErrInvalidConfig("task_timeout must be greater than 0")
	}
	return nil
}
