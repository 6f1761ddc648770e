package ch

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Config holds the ClickHouse connection and writer configuration
type Config struct {
	Hosts       []string      `mapstructure:"hosts" yaml:"hosts"`
	Database    string        `mapstructure:"database" yaml:"database"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	Debug       bool          `mapstructure:"debug" yaml:"debug"`
	// Settings are passed to every query (https://clickhouse.com/docs/operations/settings/settings)
	Settings clickhouse.Settings `mapstructure:"settings" yaml:"settings"`
	// Writer enables batch writing; nil disables it
	Writer *WriterConfig `mapstructure:"writer" yaml:"writer"`
}

// WriterConfig controls batching
type WriterConfig struct {
	// default: 10s
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	// FlushSize triggers a flush as soon as that many rows are pending
	// default: 5000
	FlushSize int `mapstructure:"flush_size" yaml:"flush_size"`
	// MinFlushSize is the smallest batch an interval tick flushes; 0 flushes
	// on every tick and is kept by MergeDefaults
	// default: 100
	MinFlushSize int `mapstructure:"min_flush_size" yaml:"min_flush_size"`
	// MaxWaitTime forces a flush of a small batch once its first row is that old;
	// 0 waits for MinFlushSize indefinitely
	// default: 60s
	MaxWaitTime time.Duration `mapstructure:"max_wait_time" yaml:"max_wait_time"`
	// InsertTimeout bounds a single batch insert
	// default: 30s
	InsertTimeout time.Duration `mapstructure:"insert_timeout" yaml:"insert_timeout"`
}

// DefaultConfig returns the default connection configuration
func DefaultConfig() *Config {
	return &Config{
		Database:    "default",
		DialTimeout: 10 * time.Second,
	}
}

// DefaultWriterConfig returns the default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		FlushInterval: 10 * time.Second,
		FlushSize:     5000,
		MinFlushSize:  100,
		MaxWaitTime:   60 * time.Second,
		InsertTimeout: 30 * time.Second,
	}
}

// MergeDefaults fills unset fields from DefaultConfig and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Database == "" {
		c.Database = defaults.Database
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.Writer != nil {
		c.Writer.MergeDefaults()
	}
	return c
}

// MergeDefaults fills unset fields from DefaultWriterConfig and returns c
func (c *WriterConfig) MergeDefaults() *WriterConfig {
	defaults := DefaultWriterConfig()
	if c.FlushInterval == 0 {
		c.FlushInterval = defaults.FlushInterval
	}
	if c.FlushSize == 0 {
		c.FlushSize = defaults.FlushSize
	}
	if c.MaxWaitTime == 0 {
		c.MaxWaitTime = defaults.MaxWaitTime
	}
	if c.InsertTimeout == 0 {
		c.InsertTimeout = defaults.InsertTimeout
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return ErrInvalidConfig("hosts are required")
	}
	if c.Username == "" {
		return ErrInvalidConfig("username is required")
	}
	if c.Writer != nil {
		return c.Writer.Validate()
	}
	return nil
}

// Validate validates the writer configuration
func (c *WriterConfig) Validate() error {
	if c.FlushInterval <= 0 {
		return ErrInvalidConfig("writer.flush_interval must be greater than 0")
	}
	if c.FlushSize <= 0 {
		return ErrInvalidConfig("writer.flush_size must be greater than 0")
	}
	if c.MinFlushSize < 0 {
		return ErrInvalidConfig("writer.min_flush_size cannot be negative")
	}
	if c.MinFlushSize > c.FlushSize {
		return ErrInvalidConfig("writer.min_flush_size cannot be greater than writer.flush_size")
	}
	if c.MaxWaitTime < 0 {
		return ErrInvalidConfig("writer.max_wait_time cannot be negative")
	}
	if c.InsertTimeout <= 0 {
		return ErrInvalidConfig("writer.insert_timeout must be greater than 0")
	}
	return nil
}
