package history

import "time"

// Config holds configuration for snapshot recording
type Config struct {
	// Spec is the cron spec of the snapshot job
	// default: "0 * * * * *" (every minute)
	Spec string `mapstructure:"spec" yaml:"spec"`
	// Retention is how long snapshots are kept by recorders that prune;
	// negative keeps them forever
	// default: 720h
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
	// ActionTable and SnapshotTable name the ClickHouse tables
	// default: "objsync_actions", "objsync_cache_snapshots"
	ActionTable   string `mapstructure:"action_table" yaml:"action_table"`
	SnapshotTable string `mapstructure:"snapshot_table" yaml:"snapshot_table"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Spec:          "0 * * * * *",
		Retention:     30 * 24 * time.Hour,
		ActionTable:   "objsync_actions",
		SnapshotTable: "objsync_cache_snapshots",
	}
}

// MergeDefaults fills unset fields from DefaultConfig and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Spec == "" {
		c.Spec = defaults.Spec
	}
	if c.Retention == 0 {
		c.Retention = defaults.Retention
	}
	if c.ActionTable == "" {
		c.ActionTable = defaults.ActionTable
	}
	if c.SnapshotTable == "" {
		c.SnapshotTable = defaults.SnapshotTable
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Spec == "" {
		return ErrInvalidConfig("spec is required")
	}
	if c.ActionTable == "" || c.SnapshotTable == "" {
		return ErrInvalidConfig("table names are required")
	}
	return nil
}
