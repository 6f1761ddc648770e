package rest

import "fmt"

// ErrInvalidConfig returns an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("rest: invalid config: %s", msg)
}

// ErrEncode is returned when a request body cannot be encoded
func ErrEncode(err error) error {
	return fmt.Errorf("rest: failed to encode request body: %w", err)
}

// ErrToken is returned when the token source fails
func ErrToken(err error) error {
	return fmt.Errorf("rest: failed to obtain token: %w", err)
}

// ErrResponseTooLarge is returned when an answer exceeds MaxResponseBytes
func ErrResponseTooLarge(limit int64) error {
	return fmt.Errorf("rest: response exceeds %d bytes", limit)
}
