package signal

import "fmt"

// Predefined errors
var (
	// ErrNilProducer is returned when a forwarder is built without producer
	ErrNilProducer = fmt.Errorf("signal: nil producer")
	// ErrEmptyTopic is returned when a forwarder is built without topic
	ErrEmptyTopic = fmt.Errorf("signal: empty topic")
)

// ErrMissingSubject is returned when a successful mutating action has no subject
func ErrMissingSubject(action Action) error {
	return fmt.Errorf("signal: %s signal without subject", action)
}

// ErrDecode is returned for malformed envelopes
func ErrDecode(err error) error {
	return fmt.Errorf("signal: decode envelope: %w", err)
}

// ErrEncode is returned when an envelope cannot be serialized
func ErrEncode(err error) error {
	return fmt.Errorf("signal: encode envelope: %w", err)
}
