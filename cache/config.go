package cache

// Config holds configuration for the entity cache
type Config struct {
	// Name identifies the cache in logs and reports (required)
	// default: "objsync"
	Name string `mapstructure:"name" yaml:"name"`
	// EvictHook runs for every evicted payload
	// default: ClearToMany
	EvictHook EvictHook `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the default configuration for the cache
func DefaultConfig() *Config {
	return &Config{
		Name:      "objsync",
		EvictHook: ClearToMany,
	}
}

// MergeDefaults fills unset fields from DefaultConfig and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.EvictHook == nil {
		c.EvictHook = defaults.EvictHook
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidName(c.Name)
	}
	return nil
}
