// Package crud synchronizes cached entities with a REST-ish server.
//
// A Dao retrieves, creates, updates and removes entities, keeping every live
// instance unique per server identity through the reference-counted cache.
// Concurrent retrieves of the same entity share one round trip, fetches of a
// to-many relation are serialized per relation, and all network calls go
// through one FIFO limiter. Every action publishes exactly one
// ActionCompleted signal before it returns, success or failure.
//
// Errors are triaged into a small taxonomy (NotFoundError, ConflictError,
// ValidationError, ...) so callers can react with errors.As.
package crud

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/entity"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"github.com/dailyyoga/objsync/signal"
	"github.com/dailyyoga/objsync/throttle"
)

// Dao is the CRUD synchronization protocol
type Dao interface {
	// Retrieve returns the entity typeName@id tracked with referer. A fresh
	// cached instance is returned at once and refreshed in the background;
	// otherwise it is fetched, sharing the round trip with concurrent
	// retrieves of the same entity. An entity the server no longer knows is
	// evicted, forgotten and returned without error if it was cached.
	// A nil referer leaves the result untracked.
	Retrieve(ctx context.Context, typeName, id string, referer cache.Referer, force bool) (entity.Entity, error)

	// Create persists a new entity, reloads it in place and tracks it with referer
	Create(ctx context.Context, e entity.Entity, referer cache.Referer) error

	// Update sends e and reloads it in place. On a conflict the server's
	// newer version of the reported entity is applied to its cached copy
	// before the ConflictError is returned.
	Update(ctx context.Context, e entity.Entity) error

	// Remove deletes e. A server that no longer knows e counts as success.
	// The entity is evicted and forgotten, and the cached entities it
	// referenced are refreshed in the background.
	Remove(ctx context.Context, e entity.Entity) error

	// RetrieveToMany fills owner's collection named property and tracks it
	// with referer. Items are tracked with the collection as referer.
	RetrieveToMany(ctx context.Context, owner entity.Entity, property string, referer cache.Referer, opts ListOptions) (*entity.ToMany, error)

	// SearchInto fills result with the entities of typeName matching query.
	// Results are not tracked.
	SearchInto(ctx context.Context, result *entity.Collection, typeName string, query url.Values, opts ListOptions) error

	// HandleRemote applies a signal received from another process
	HandleRemote(ctx context.Context, env signal.Envelope) error

	// Wait blocks until background refreshes have finished
	Wait()
}

// URLBuilder maps actions to request URLs
type URLBuilder interface {
	// EntityURL returns the URL of an entity action; id is "" for creates
	EntityURL(action signal.Action, typeName, id string) string
	// RelationURL returns the URL of a to-many relation
	RelationURL(typeName, id, property string) string
	// SearchURL returns the URL of a query over typeName
	SearchURL(typeName string, query url.Values) string
}

// Reviver turns server payloads into live entities
type Reviver interface {
	// Revive returns the live entity for p, reusing the cached instance when
	// there is one and instantiating the payload's type otherwise. Nested
	// entities are tracked with their parent as referer; the result is
	// tracked with referer unless it is nil.
	Revive(ctx context.Context, p entity.Payload, referer cache.Referer) (entity.Entity, error)

	// ReviveInto reloads e from p under the change mode rule
	ReviveInto(ctx context.Context, e entity.Entity, p entity.Payload) (bool, error)

	// Accept reloads e from the answer to a write issued for it
	Accept(ctx context.Context, e entity.Entity, p entity.Payload) error
}

// Transport performs requests. Non-2xx answers are returned as *StatusError.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is one server call
type Request struct {
	Method string
	URL    string
	// Type and ID name the target entity, for diagnostics and error triage
	Type string
	ID   string
	Body entity.Payload
	// Range selects a slice of a list, nil for everything
	Range *Range
}

// Response is a decoded 2xx answer
type Response struct {
	Status int
	// Body is the decoded JSON document: an object, a list or nil
	Body any
	// Total is the list size reported out of band, -1 when unknown
	Total int
}

// Range is an inclusive item range; End < 0 means open ended
type Range struct {
	Start int
	End   int
}

// String renders the range header value, e.g. "items=0-24"
func (r Range) String() string {
	if r.End < 0 {
		return "items=" + strconv.Itoa(r.Start) + "-"
	}
	return "items=" + strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// ListOptions selects a page of a list
type ListOptions struct {
	Start int
	// Count is the page size, 0 for everything from Start
	Count int
}

// Range converts the options to a request range, nil for the whole list
func (o ListOptions) Range() *Range {
	if o.Start <= 0 && o.Count <= 0 {
		return nil
	}
	start := max(o.Start, 0)
	if o.Count <= 0 {
		return &Range{Start: start, End: -1}
	}
	return &Range{Start: start, End: start + o.Count - 1}
}

// UnauthorizedFunc is called for every 401 answer before the error is returned
type UnauthorizedFunc func(ctx context.Context, req *Request)

// Deps are the collaborators of a Dao
type Deps struct {
	Cache     cache.Cache
	Transport Transport
	URLs      URLBuilder
	Registry  *entity.Registry
	Bus       signal.Bus

	// Limiter bounds network calls; default: a FIFO limiter with Config.MaxInFlight
	Limiter throttle.Limiter
	// Runner runs background refreshes; default: routine.New
	Runner routine.Runner
	// Reviver default: NewReviver(Cache, Registry)
	Reviver Reviver
	// OnUnauthorized is optional
	OnUnauthorized UnauthorizedFunc
	// Origin identifies this process on remote signals; default: signal.Origin()
	Origin string
}

func (d *Deps) validate() error {
	switch {
	case d.Cache == nil:
		return ErrMissingDependency("cache")
	case d.Transport == nil:
		return ErrMissingDependency("transport")
	case d.URLs == nil:
		return ErrMissingDependency("url builder")
	case d.Registry == nil && d.Reviver == nil:
		return ErrMissingDependency("registry")
	case d.Bus == nil:
		return ErrMissingDependency("bus")
	}
	return nil
}

func (d *Deps) withDefaults(log logger.Logger, cfg *Config) (*Deps, error) {
	out := *d
	if out.Limiter == nil {
		l, err := throttle.New(log, &throttle.Config{Name: cfg.Name, MaxInFlight: cfg.MaxInFlight})
		if err != nil {
			return nil, err
		}
		out.Limiter = l
	}
	if out.Runner == nil {
		out.Runner = routine.New(log)
	}
	if out.Reviver == nil {
		out.Reviver = NewReviver(out.Cache, out.Registry)
	}
	if out.Origin == "" {
		out.Origin = signal.Origin()
	}
	return &out, nil
}
