package signal

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dailyyoga/objsync/entity"
	"github.com/google/uuid"
)

// processOrigin identifies this process on every envelope it emits
var processOrigin = uuid.NewString()

// Origin returns the identifier of the running process
func Origin() string {
	return processOrigin
}

// ErrorKinder is implemented by errors that classify themselves for the wire,
// e.g. "not-found" or "conflict".
type ErrorKinder interface {
	Kind() string
}

// ErrorKindUnknown is the wire kind of errors that do not classify themselves
const ErrorKindUnknown = "unhandled"

// Envelope is the wire form of a signal. Entities travel as keys only.
type Envelope struct {
	ID          string     `json:"id"`
	Origin      string     `json:"origin"`
	Source      string     `json:"source"`
	Action      Action     `json:"action"`
	URL         string     `json:"url,omitempty"`
	Subject     entity.Key `json:"subject,omitempty"`
	Created     entity.Key `json:"created,omitempty"`
	Disappeared entity.Key `json:"disappeared,omitempty"`
	Error       string     `json:"error,omitempty"`
	At          time.Time  `json:"at"`
}

// NewEnvelope converts s for the wire
func NewEnvelope(s *ActionCompleted, origin string) Envelope {
	env := Envelope{
		ID:          s.ID().String(),
		Origin:      origin,
		Source:      s.Source(),
		Action:      s.Action(),
		URL:         s.URL(),
		Subject:     s.SubjectKey(),
		Created:     s.CreatedKey(),
		Disappeared: s.DisappearedKey(),
		At:          s.At().UTC(),
	}
	if err := s.Err(); err != nil {
		env.Error = ErrorKind(err)
	}
	return env
}

// ErrorKind classifies err for the wire
func ErrorKind(err error) string {
	var k ErrorKinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ErrorKindUnknown
}

// Marshal encodes the envelope as JSON
func (e Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, ErrEncode(err)
	}
	return b, nil
}

// DecodeEnvelope parses a JSON envelope
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrDecode(err)
	}
	if env.Action == "" {
		return Envelope{}, ErrDecode(errors.New("missing action"))
	}
	return env, nil
}

// Succeeded reports whether the remote action completed without error
func (e Envelope) Succeeded() bool {
	return e.Error == ""
}

// Forwardable reports whether other processes care about s: successful
// mutations and disappearances.
func Forwardable(s *ActionCompleted) bool {
	if s.Disappeared() != nil {
		return true
	}
	return s.Action().Mutates() && s.Succeeded()
}
