package history

import "fmt"

var (
	// ErrNoSnapshot is returned by record tasks run without a snapshot task before them
	ErrNoSnapshot = fmt.Errorf("history: no snapshot in this run")
	// ErrNoRecorders is returned when a job is built without recorders
	ErrNoRecorders = fmt.Errorf("history: no recorders")
)

// ErrInvalidConfig returns an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("history: invalid config: %s", msg)
}

// ErrRecord wraps a recorder failure
func ErrRecord(recorder string, err error) error {
	return fmt.Errorf("history: recorder %s: %w", recorder, err)
}
