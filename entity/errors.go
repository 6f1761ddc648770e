package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNilEntity is returned when an operation receives a nil entity
	ErrNilEntity = fmt.Errorf("entity: nil entity")
	// ErrNilPayload is returned when Apply receives no payload
	ErrNilPayload = fmt.Errorf("entity: nil payload")
	// ErrNoResolver is returned when a nested payload is resolved without a cache behind it
	ErrNoResolver = fmt.Errorf("entity: no resolver for nested payload")
	// ErrNotReloadable is returned by collections, which are filled by the sync protocol instead
	ErrNotReloadable = fmt.Errorf("entity: collection cannot be reloaded from a single payload")

	// ErrFatal marks contract violations: they indicate a programmer or server
	// error and must never be retried or silently tolerated.
	ErrFatal = errors.New("entity: contract violation")
)

// ErrVersionRegression is returned when an incoming version is lower than the current one
func ErrVersionRegression(current, incoming int64) error {
	return fmt.Errorf("%w: version went backwards from %d to %d", ErrFatal, current, incoming)
}

// ErrIdentityChanged is returned when a payload carries a different identifier for a persisted entity
func ErrIdentityChanged(key Key, incoming string) error {
	return fmt.Errorf("%w: %s cannot change its identifier to %q", ErrFatal, key, incoming)
}

// ErrUnknownType is returned when a type name is not registered
func ErrUnknownType(name string) error {
	return fmt.Errorf("entity: unknown type %q", name)
}

// ErrAbstractType is returned when instantiating a type without a constructor
func ErrAbstractType(name string) error {
	return fmt.Errorf("entity: type %q has no constructor", name)
}

// ErrInvalidType is returned when registering a malformed type descriptor
func ErrInvalidType(msg string) error {
	return fmt.Errorf("entity: invalid type: %s", msg)
}

// ErrDuplicateType is returned when two different descriptors share a name
func ErrDuplicateType(name string) error {
	return fmt.Errorf("entity: type %q already registered", name)
}
