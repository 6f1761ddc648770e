// Package config loads the YAML configuration of an objsync process.
//
// Every section maps onto the Config type of the package it configures.
// Sections for optional infrastructure are pointers; a missing section
// disables the component:
//
//	logger:
//	  level: info
//	rest:
//	  base_url: https://api.example.com/v1
//	kafka:
//	  topic: objsync.signals
//	  producer:
//	    brokers: ["kafka:9092"]
//	clickhouse:
//	  hosts: ["clickhouse:9000"]
//	  username: default
//	  password: ${CLICKHOUSE_PASSWORD}
//	history:
//	  spec: "0 */5 * * * *"
//
// Environment variables referenced as ${NAME} are expanded before parsing.
package config

import (
	"os"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/ch"
	"github.com/dailyyoga/objsync/cron"
	"github.com/dailyyoga/objsync/crud"
	"github.com/dailyyoga/objsync/db"
	"github.com/dailyyoga/objsync/history"
	"github.com/dailyyoga/objsync/kafka"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/rest"
	"github.com/dailyyoga/objsync/throttle"
	"gopkg.in/yaml.v3"
)

// Config aggregates the configuration of every component
type Config struct {
	Logger *logger.Config `yaml:"logger"`
	Cache  *cache.Config  `yaml:"cache"`
	Crud   *crud.Config   `yaml:"crud"`
	Rest   *rest.Config   `yaml:"rest"`
	Cron   *cron.Config   `yaml:"cron"`

	// Throttle overrides the limiter derived from crud.max_in_flight
	Throttle *throttle.Config `yaml:"throttle"`
	// Kafka enables signal forwarding and remote signal handling
	Kafka *kafka.Config `yaml:"kafka"`
	// ClickHouse enables the action log and the ClickHouse snapshot recorder
	ClickHouse *ch.Config `yaml:"clickhouse"`
	// MySQL enables the MySQL snapshot recorder
	MySQL *db.Config `yaml:"mysql"`
	// History enables periodic cache snapshots; it needs clickhouse or mysql
	History *history.Config `yaml:"history"`
}

// Load reads, merges defaults into and validates the file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrRead(path, err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, ErrParse(err)
	}
	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeDefaults fills missing mandatory sections and merges defaults into
// every present section. It returns c.
func (c *Config) MergeDefaults() *Config {
	if c.Logger == nil {
		c.Logger = logger.DefaultConfig()
	} else {
		c.Logger.MergeDefaults()
	}
	if c.Cache == nil {
		c.Cache = cache.DefaultConfig()
	} else {
		c.Cache.MergeDefaults()
	}
	if c.Crud == nil {
		c.Crud = crud.DefaultConfig()
	} else {
		c.Crud.MergeDefaults()
	}
	if c.Rest == nil {
		c.Rest = rest.DefaultConfig()
	} else {
		c.Rest.MergeDefaults()
	}
	if c.Cron == nil {
		c.Cron = cron.DefaultConfig()
	} else {
		c.Cron.MergeDefaults()
	}
	if c.Throttle != nil {
		c.Throttle.MergeDefaults()
	}
	if c.Kafka != nil {
		c.Kafka.MergeDefaults()
	}
	if c.ClickHouse != nil {
		c.ClickHouse.MergeDefaults()
	}
	if c.MySQL != nil {
		c.MySQL.MergeDefaults()
	}
	if c.History != nil {
		c.History.MergeDefaults()
	}
	return c
}

type validator interface {
	Validate() error
}

// Validate validates every present section
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validator
		set  bool
	}{
		{"logger", c.Logger, c.Logger != nil},
		{"cache", c.Cache, c.Cache != nil},
		{"crud", c.Crud, c.Crud != nil},
		{"rest", c.Rest, c.Rest != nil},
		{"cron", c.Cron, c.Cron != nil},
		{"throttle", c.Throttle, c.Throttle != nil},
		{"kafka", c.Kafka, c.Kafka != nil},
		{"clickhouse", c.ClickHouse, c.ClickHouse != nil},
		{"mysql", c.MySQL, c.MySQL != nil},
		{"history", c.History, c.History != nil},
	}
	for _, s := range sections {
		if !s.set {
			continue
		}
		if err := s.v.Validate(); err != nil {
			return ErrSection(s.name, err)
		}
	}
	if c.History != nil && c.ClickHouse == nil && c.MySQL == nil {
		return ErrSection("history", ErrNoRecorder)
	}
	return nil
}
