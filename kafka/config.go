package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Config holds the signal transport configuration
type Config struct {
	// Topic receives forwarded signals
	// default: "objsync.signals"
	Topic string `mapstructure:"topic" yaml:"topic"`
	// Producer is required to forward signals, nil disables forwarding
	Producer *ProducerConfig `mapstructure:"producer" yaml:"producer"`
	// Consumer is required to receive signals, nil disables receiving
	Consumer *ConsumerConfig `mapstructure:"consumer" yaml:"consumer"`
}

// DefaultConfig returns the default transport configuration
func DefaultConfig() *Config {
	return &Config{Topic: "objsync.signals"}
}

// MergeDefaults fills unset fields from the defaults and returns c
func (c *Config) MergeDefaults() *Config {
	if c.Topic == "" {
		c.Topic = DefaultConfig().Topic
	}
	if c.Producer != nil {
		c.Producer.MergeDefaults()
	}
	if c.Consumer != nil {
		c.Consumer.MergeDefaults()
		if len(c.Consumer.Topics) == 0 {
			c.Consumer.Topics = []string{c.Topic}
		}
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Topic == "" {
		return ErrInvalidConfig("topic is required")
	}
	if c.Producer != nil {
		if err := c.Producer.Validate(); err != nil {
			return err
		}
	}
	if c.Consumer != nil {
		if err := c.Consumer.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ConsumerConfig is the configuration for kafka consumer
type ConsumerConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	// GroupID must be unique per process so that every process sees every signal
	GroupID string   `mapstructure:"group_id" yaml:"group_id"`
	Topics  []string `mapstructure:"topics" yaml:"topics"`

	// Attempts per message before it is logged and skipped
	// default: 3
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// Instance number for parallel processing
	// default: 1
	InstanceNum int `mapstructure:"instance_num" yaml:"instance_num"`

	// "earliest" or "latest"
	// default: "latest"
	AutoOffsetReset string `mapstructure:"auto_offset_reset" yaml:"auto_offset_reset"`

	// default: false
	EnableAutoCommit bool `mapstructure:"enable_auto_commit" yaml:"enable_auto_commit"`

	// only used when EnableAutoCommit is true
	// default: 5s
	AutoCommitInterval time.Duration `mapstructure:"auto_commit_interval" yaml:"auto_commit_interval"`

	// default: 30s
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`

	// default: 120s
	MaxPollInterval time.Duration `mapstructure:"max_poll_interval" yaml:"max_poll_interval"`

	// only PLAINTEXT is supported for now
	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol" yaml:"security_protocol"`

	// Debug enables librdkafka consumer debug logs
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// DefaultConsumerConfig returns the default consumer configuration
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		MaxRetries:         3,
		InstanceNum:        1,
		AutoOffsetReset:    "latest",
		AutoCommitInterval: 5 * time.Second,
		SessionTimeout:     30 * time.Second,
		MaxPollInterval:    120 * time.Second,
		SecurityProtocol:   "PLAINTEXT",
	}
}

// MergeDefaults fills unset fields from DefaultConsumerConfig and returns c
func (c *ConsumerConfig) MergeDefaults() *ConsumerConfig {
	d := DefaultConsumerConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InstanceNum == 0 {
		c.InstanceNum = d.InstanceNum
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = d.AutoOffsetReset
	}
	if c.AutoCommitInterval == 0 {
		c.AutoCommitInterval = d.AutoCommitInterval
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.MaxPollInterval == 0 {
		c.MaxPollInterval = d.MaxPollInterval
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = d.SecurityProtocol
	}
	return c
}

// Validate validates the consumer configuration
func (c *ConsumerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if c.GroupID == "" {
		return ErrInvalidConfig("group_id is required")
	}
	if len(c.Topics) == 0 {
		return ErrInvalidConfig("topics are required")
	}
	if c.MaxRetries <= 0 {
		return ErrInvalidConfig("max_retries must be greater than 0")
	}
	if c.InstanceNum <= 0 {
		return ErrInvalidConfig("instance_num must be greater than 0")
	}
	if c.AutoOffsetReset != "earliest" && c.AutoOffsetReset != "latest" {
		return ErrInvalidConfig(
			fmt.Sprintf("invalid auto_offset_reset: %s, must be either 'earliest' or 'latest'", c.AutoOffsetReset),
		)
	}
	if c.EnableAutoCommit && c.AutoCommitInterval <= 0 {
		return ErrInvalidConfig("auto_commit_interval must be greater than 0 when enable_auto_commit is true")
	}
	if c.SessionTimeout <= 0 {
		return ErrInvalidConfig("session_timeout must be greater than 0")
	}
	if c.MaxPollInterval <= 0 {
		return ErrInvalidConfig("max_poll_interval must be greater than 0")
	}
	return nil
}

// BuildConfigMap converts c to librdkafka settings
func (c *ConsumerConfig) BuildConfigMap() *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":    strings.Join(c.Brokers, ","),
		"group.id":             c.GroupID,
		"auto.offset.reset":    strings.ToLower(c.AutoOffsetReset),
		"enable.auto.commit":   c.EnableAutoCommit,
		"session.timeout.ms":   int(c.SessionTimeout.Milliseconds()),
		"max.poll.interval.ms": int(c.MaxPollInterval.Milliseconds()),
		"security.protocol":    c.SecurityProtocol,
	}
	if c.EnableAutoCommit {
		_ = configMap.SetKey("auto.commit.interval.ms", int(c.AutoCommitInterval.Milliseconds()))
	}
	if c.Debug {
		_ = configMap.SetKey("debug", "consumer,cgrp,topic,fetch")
	}
	return configMap
}

// ProducerConfig is the configuration for kafka producer
type ProducerConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`

	// ClientID names the producer in broker logs
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// "all", "1" or "0"
	// default: "all"
	Acks string `mapstructure:"acks" yaml:"acks"`

	// none, gzip, snappy, lz4 or zstd
	// default: "none"
	Compression string `mapstructure:"compression" yaml:"compression"`

	// default: 5
	LingerMs int `mapstructure:"linger_ms" yaml:"linger_ms"`

	// default: 100KB
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol" yaml:"security_protocol"`

	// default: 3
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultProducerConfig returns the default producer configuration
func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Acks:             "all",
		Compression:      "none",
		LingerMs:         5,
		BatchSize:        100 * 1024,
		SecurityProtocol: "PLAINTEXT",
		MaxRetries:       3,
	}
}

// MergeDefaults fills unset fields from DefaultProducerConfig and returns p
func (p *ProducerConfig) MergeDefaults() *ProducerConfig {
	d := DefaultProducerConfig()
	if p.Acks == "" {
		p.Acks = d.Acks
	}
	if p.Compression == "" {
		p.Compression = d.Compression
	}
	if p.LingerMs == 0 {
		p.LingerMs = d.LingerMs
	}
	if p.BatchSize == 0 {
		p.BatchSize = d.BatchSize
	}
	if p.SecurityProtocol == "" {
		p.SecurityProtocol = d.SecurityProtocol
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = d.MaxRetries
	}
	return p
}

// Validate validates the producer configuration
func (p *ProducerConfig) Validate() error {
	if len(p.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	switch strings.ToLower(p.Acks) {
	case "all", "-1", "0", "1":
	default:
		return ErrInvalidConfig(fmt.Sprintf("invalid acks: %s", p.Acks))
	}
	return nil
}

// BuildConfigMap converts p to librdkafka settings
func (p *ProducerConfig) BuildConfigMap() *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(p.Brokers, ","),
		"compression.type":  strings.ToLower(p.Compression),
		"acks":              strings.ToLower(p.Acks),
		"linger.ms":         p.LingerMs,
		"batch.size":        p.BatchSize,
		"retries":           p.MaxRetries,
		"security.protocol": p.SecurityProtocol,
	}
	if p.ClientID != "" {
		_ = configMap.SetKey("client.id", p.ClientID)
	}
	return configMap
}
