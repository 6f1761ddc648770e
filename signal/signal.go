// Package signal models the notification emitted after every completed
// sync action, and the channels it travels on.
//
// A signal is immutable once built. Views subscribe to a Bus to learn that an
// entity was created, updated, deleted or has disappeared from the server;
// a KafkaForwarder relays the same facts to other processes as Envelopes.
package signal

import (
	"time"

	"github.com/dailyyoga/objsync/entity"
	"github.com/oklog/ulid/v2"
)

// Action is the kind of sync action a signal reports
type Action string

const (
	ActionRetrieve Action = "retrieve"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
)

// Mutates reports whether a successful action of this kind changes server state
func (a Action) Mutates() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// ActionCompleted reports the outcome of one sync action
type ActionCompleted struct {
	id          ulid.ULID
	action      Action
	source      string
	url         string
	subject     entity.Entity
	err         error
	created     entity.Entity
	disappeared entity.Entity
	at          time.Time

	subjectKey     entity.Key
	createdKey     entity.Key
	disappearedKey entity.Key
}

// ID returns the unique, time-ordered signal identifier
func (s *ActionCompleted) ID() ulid.ULID { return s.id }

// Action returns the action kind
func (s *ActionCompleted) Action() Action { return s.action }

// Source names the sync component that emitted the signal
func (s *ActionCompleted) Source() string { return s.source }

// URL returns the request URL, "" if no request was made
func (s *ActionCompleted) URL() string { return s.url }

// Subject returns the entity the action was about, possibly nil for failures
func (s *ActionCompleted) Subject() entity.Entity { return s.subject }

// Err returns the action error, nil on success
func (s *ActionCompleted) Err() error { return s.err }

// Created returns the newly persisted entity of a create
func (s *ActionCompleted) Created() entity.Entity { return s.created }

// Disappeared returns the entity found to be gone from the server
func (s *ActionCompleted) Disappeared() entity.Entity { return s.disappeared }

// At returns the completion time
func (s *ActionCompleted) At() time.Time { return s.at }

// SubjectKey returns the subject identity as it was when the signal was built.
// It survives the subject being forgotten after deletion.
func (s *ActionCompleted) SubjectKey() entity.Key { return s.subjectKey }

// CreatedKey returns the identity of the created entity
func (s *ActionCompleted) CreatedKey() entity.Key { return s.createdKey }

// DisappearedKey returns the identity the disappeared entity had on the server
func (s *ActionCompleted) DisappearedKey() entity.Key { return s.disappearedKey }

// Succeeded reports whether the action completed without error
func (s *ActionCompleted) Succeeded() bool { return s.err == nil }

// Builder accumulates the fields of a signal. It is not safe for concurrent use.
type Builder struct {
	s ActionCompleted
}

// NewBuilder starts a signal for action emitted by source
func NewBuilder(action Action, source string) *Builder {
	return &Builder{s: ActionCompleted{action: action, source: source}}
}

// URL sets the request URL
func (b *Builder) URL(url string) *Builder {
	b.s.url = url
	return b
}

// Subject sets the subject entity and records its current key
func (b *Builder) Subject(e entity.Entity) *Builder {
	b.s.subject = e
	if k := entity.KeyForObject(e); k != "" {
		b.s.subjectKey = k
	}
	return b
}

// Key records the subject identity for entities that no longer carry it
func (b *Builder) Key(k entity.Key) *Builder {
	b.s.subjectKey = k
	return b
}

// Err sets the action error
func (b *Builder) Err(err error) *Builder {
	b.s.err = err
	return b
}

// Created sets the created entity
func (b *Builder) Created(e entity.Entity) *Builder {
	b.s.created = e
	return b
}

// Disappeared sets the entity found to be gone and records its current key
func (b *Builder) Disappeared(e entity.Entity) *Builder {
	b.s.disappeared = e
	if k := entity.KeyForObject(e); k != "" {
		b.s.disappearedKey = k
	}
	return b
}

// At overrides the completion time, now by default
func (b *Builder) At(t time.Time) *Builder {
	b.s.at = t
	return b
}

// Build freezes the signal. Mutating actions need a subject unless they
// failed before one was established.
func (b *Builder) Build() (*ActionCompleted, error) {
	if b.s.action.Mutates() && b.s.subject == nil && b.s.err == nil {
		return nil, ErrMissingSubject(b.s.action)
	}
	s := b.s
	if s.subjectKey == "" {
		s.subjectKey = entity.KeyForObject(s.subject)
	}
	s.createdKey = entity.KeyForObject(s.created)
	if s.disappearedKey == "" {
		if s.disappeared != nil && s.disappeared == s.subject {
			s.disappearedKey = s.subjectKey
		} else {
			s.disappearedKey = entity.KeyForObject(s.disappeared)
		}
	}
	if s.at.IsZero() {
		s.at = time.Now()
	}
	s.id = ulid.MustNew(ulid.Timestamp(s.at), ulid.DefaultEntropy())
	return &s, nil
}
