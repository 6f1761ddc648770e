package throttle

// Config holds configuration for the limiter
type Config struct {
	// Name identifies the limiter in logs
	// default: "requests"
	Name string `mapstructure:"name" yaml:"name"`
	// MaxInFlight is the number of calls allowed to run concurrently
	// default: 16
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight"`
	// QueueCapacity is the initial capacity of the wait queue; it grows on demand
	// default: 64
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`
}

// DefaultConfig returns the default configuration for the limiter
func DefaultConfig() *Config {
	return &Config{
		Name:          "requests",
		MaxInFlight:   16,
		QueueCapacity: 64,
	}
}

// MergeDefaults fills unset fields from DefaultConfig and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = defaults.MaxInFlight
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = defaults.QueueCapacity
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxInFlight <= 0 {
		return ErrInvalidMaxInFlight(c.MaxInFlight)
	}
	if c.QueueCapacity <= 0 {
		return ErrInvalidQueueCapacity(c.QueueCapacity)
	}
	return nil
}
