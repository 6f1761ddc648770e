package throttle

import "fmt"

// Predefined errors
var (
	// ErrClosed is returned by Do once the limiter is closed
	ErrClosed = fmt.Errorf("throttle: limiter closed")
)

// ErrInvalidMaxInFlight returns an error for an invalid budget
func ErrInvalidMaxInFlight(n int) error {
	return fmt.Errorf("throttle: invalid max in flight: %d (must be > 0)", n)
}

// ErrInvalidQueueCapacity returns an error for an invalid queue capacity
func ErrInvalidQueueCapacity(n int) error {
	return fmt.Errorf("throttle: invalid queue capacity: %d (must be > 0)", n)
}
