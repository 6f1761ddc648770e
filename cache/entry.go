package cache

import (
	"time"

	"github.com/dailyyoga/objsync/entity"
)

// entry wraps one cached payload and its referer set.
type entry struct {
	key     entity.Key
	payload entity.Entity
	// aliases are other instances tracked under the same key
	aliases  []entity.Entity
	referers map[Referer]struct{}
	created  time.Time
}

func newEntry(key entity.Key, payload entity.Entity, created time.Time) *entry {
	return &entry{
		key:      key,
		payload:  payload,
		referers: make(map[Referer]struct{}),
		created:  created,
	}
}

// add reports whether referer was new.
func (e *entry) add(referer Referer) bool {
	if _, ok := e.referers[referer]; ok {
		return false
	}
	e.referers[referer] = struct{}{}
	return true
}

// remove reports whether referer was present.
func (e *entry) remove(referer Referer) bool {
	if _, ok := e.referers[referer]; !ok {
		return false
	}
	delete(e.referers, referer)
	return true
}

func (e *entry) report() EntryReport {
	return EntryReport{
		Key:      e.key,
		Type:     e.payload.Type().String(),
		Referers: len(e.referers),
		Created:  e.created,
	}
}
