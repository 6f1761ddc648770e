package entity

import (
	"fmt"
	"time"
)

// Apply reloads e in place from p. It returns false without error when the
// reload is suppressed by change mode.
//
// Change mode rule: an entity being edited is never reloaded unless it is
// versioned and p carries a strictly greater version, in which case the
// server state wins. Equal versions while editing are a no-op, the reload
// timestamp included.
func Apply(e Entity, p Payload, r Resolver) (bool, error) {
	return ApplyAt(e, p, r, time.Now())
}

// ApplyAt is Apply with an explicit reload time.
func ApplyAt(e Entity, p Payload, r Resolver, now time.Time) (bool, error) {
	return apply(e, p, r, now, true)
}

// Accept applies the server's answer to a write issued for e. Change mode
// does not suppress it; identity and version invariants still hold.
func Accept(e Entity, p Payload, r Resolver) error {
	_, err := apply(e, p, r, time.Now(), false)
	return err
}

func apply(e Entity, p Payload, r Resolver, now time.Time, honorChangeMode bool) (bool, error) {
	if e == nil {
		return false, ErrNilEntity
	}
	if p == nil {
		return false, ErrNilPayload
	}
	if r == nil {
		r = noResolver{}
	}

	incomingID := p.ID()
	if current := e.ID(); current != "" && incomingID != "" && current != incomingID {
		return false, ErrIdentityChanged(KeyForObject(e), incomingID)
	}

	editing := false
	if ed, ok := e.(Editable); ok && honorChangeMode {
		editing = ed.InChangeMode()
	}

	incomingVersion, hasVersion := p.Version()
	v, versioned := e.(Versioned)
	if versioned && hasVersion {
		if err := CheckVersion(v.Version(), incomingVersion); err != nil {
			return false, fmt.Errorf("reloading %s: %w", KeyForObject(e), err)
		}
		if editing && incomingVersion <= v.Version() {
			return false, nil
		}
	} else if editing {
		return false, nil
	}

	if e.ID() == "" && incomingID != "" {
		e.SetID(incomingID)
	}
	if err := e.Reload(p, r); err != nil {
		return false, err
	}
	if versioned && hasVersion {
		v.SetVersion(incomingVersion)
	}
	if a, ok := e.(Auditable); ok {
		if err := a.ReloadAudit(p); err != nil {
			return false, err
		}
	}
	e.MarkReloaded(now)
	return true, nil
}

// Forget detaches e from its server identity after deletion or disappearance:
// identifier, version and audit fields are cleared and observers notified.
func Forget(e Entity) {
	if e == nil {
		return
	}
	e.SetID("")
	if v, ok := e.(Versioned); ok {
		v.SetVersion(0)
	}
	if a, ok := e.(Auditable); ok {
		a.ClearAudit()
	}
	e.MarkReloaded(time.Time{})
}

type noResolver struct{}

func (noResolver) Resolve(Payload) (Entity, error) {
	return nil, ErrNoResolver
}
