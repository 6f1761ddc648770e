package cache

import (
	"fmt"

	"github.com/dailyyoga/objsync/entity"
)

// Predefined errors
var (
	// ErrNilEntity is returned when tracking a nil entity
	ErrNilEntity = fmt.Errorf("cache: nil entity")
	// ErrNilReferer is returned when tracking with a nil referer
	ErrNilReferer = fmt.Errorf("cache: nil referer")
)

// ErrInvalidName returns an error for invalid name
func ErrInvalidName(name string) error {
	return fmt.Errorf("cache: invalid name: %q (must be non-empty)", name)
}

// ErrNoIdentity is returned when tracking an entity without identifier
func ErrNoIdentity(e entity.Entity) error {
	return fmt.Errorf("cache: cannot track %s without identifier: %w", e.Type(), entity.ErrFatal)
}

// ErrIncomparableReferer is returned for referers that cannot be set members
func ErrIncomparableReferer(referer Referer) error {
	return fmt.Errorf("cache: referer of type %T is not comparable", referer)
}
