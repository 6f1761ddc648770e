package config

import (
	"errors"
	"fmt"
)

// ErrNoRecorder is returned when history is enabled without a store
var ErrNoRecorder = errors.New("config: history needs a clickhouse or mysql section")

// ErrRead wraps a failure reading the configuration file
func ErrRead(path string, err error) error {
	return fmt.Errorf("config: failed to read %s: %w", path, err)
}

// ErrParse wraps a YAML decoding failure
func ErrParse(err error) error {
	return fmt.Errorf("config: failed to parse: %w", err)
}

// ErrSection wraps a validation failure of one section
func ErrSection(name string, err error) error {
	return fmt.Errorf("config: section %s: %w", name, err)
}
