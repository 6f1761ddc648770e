package app

import "errors"

var (
	// ErrNilConfig is returned by New without a configuration
	ErrNilConfig = errors.New("app: config is required")
	// ErrNilRegistry is returned by New without a type registry
	ErrNilRegistry = errors.New("app: type registry is required")
	// ErrClosed is returned by Start after Close
	ErrClosed = errors.New("app: closed")
)
