package crud

import (
	"fmt"
	"net/http"

	"github.com/dailyyoga/objsync/entity"
)

// Predefined errors
var (
	// ErrPrecondition is returned when an action is called on an entity in the
	// wrong state, e.g. creating an entity that already has an identifier.
	// It is a contract violation and matches entity.ErrFatal.
	ErrPrecondition = fmt.Errorf("crud: precondition failed: %w", entity.ErrFatal)
)

// Error kinds as they appear on the wire
const (
	KindCancelled     = "cancelled"
	KindNotAuthorized = "not-authorized"
	KindNotFound      = "not-found"
	KindSecurity      = "security"
	KindConflict      = "conflict"
	KindConstraint    = "constraint"
	KindSemantic      = "semantic"
	KindUnhandled     = "unhandled"
)

// ErrPreconditionFailed wraps ErrPrecondition with the failing action
func ErrPreconditionFailed(action, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrPrecondition, action, msg)
}

// ErrMissingDependency is returned by New when a required collaborator is nil
func ErrMissingDependency(name string) error {
	return fmt.Errorf("crud: missing dependency: %s", name)
}

// ErrInvalidConfig returns an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("crud: invalid config: %s", msg)
}

// ErrMalformedResponse is returned when a 2xx answer does not have the
// expected shape. The server broke the contract, so it matches entity.ErrFatal.
func ErrMalformedResponse(url, msg string) error {
	return fmt.Errorf("crud: malformed response from %s: %s: %w", url, msg, entity.ErrFatal)
}

// StatusError is returned by transports for non-2xx answers
type StatusError struct {
	Status int
	// Body is the raw answer body
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crud: server answered %d %s", e.Status, http.StatusText(e.Status))
}

// CancelledError reports a request abandoned by its caller
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string { return "crud: request cancelled: " + e.Err.Error() }
func (e *CancelledError) Unwrap() error { return e.Err }
func (e *CancelledError) Kind() string  { return KindCancelled }

// NotAuthorizedError reports a 401 answer
type NotAuthorizedError struct {
	URL string
}

func (e *NotAuthorizedError) Error() string { return "crud: not authorized: " + e.URL }
func (e *NotAuthorizedError) Kind() string  { return KindNotAuthorized }

// NotFoundError reports an entity unknown to the server
type NotFoundError struct {
	Type    string
	ID      string
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("crud: %s not found", entity.KeyForID(e.Type, e.ID))
}
func (e *NotFoundError) Kind() string { return KindNotFound }

// SecurityError reports an action the server forbids for this user
type SecurityError struct {
	Message string
}

func (e *SecurityError) Error() string { return "crud: forbidden: " + e.Message }
func (e *SecurityError) Kind() string  { return KindSecurity }

// ConflictError reports a concurrent modification. NewVersion is the
// server's current state of the conflicting entity, which need not be the
// entity that was sent.
type ConflictError struct {
	Type       string
	ID         string
	NewVersion entity.Payload
	Message    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("crud: %s was changed concurrently", entity.KeyForID(e.Type, e.ID))
}
func (e *ConflictError) Kind() string { return KindConflict }

// ValidationError reports a violated server constraint. Key is a machine
// readable name of the constraint, e.g. "unique.email".
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return "crud: constraint violated: " + e.Message
	}
	return fmt.Sprintf("crud: constraint %s violated: %s", e.Key, e.Message)
}
func (e *ValidationError) Kind() string { return KindConstraint }

// SemanticError reports a 403 or 410 answer without recognized payload
type SemanticError struct {
	Status  int
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("crud: request refused with %d: %s", e.Status, e.Message)
}
func (e *SemanticError) Kind() string { return KindSemantic }

// UnhandledError wraps every failure the taxonomy does not recognize
type UnhandledError struct {
	// Status is 0 for transport failures without answer
	Status int
	Err    error
}

func (e *UnhandledError) Error() string { return "crud: unhandled error: " + e.Err.Error() }
func (e *UnhandledError) Unwrap() error { return e.Err }
func (e *UnhandledError) Kind() string  { return KindUnhandled }
