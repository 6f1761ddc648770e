package crud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/entity"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/signal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	partyType    = &entity.Type{Name: "Party"}
	customerType = &entity.Type{Name: "Customer", Parent: partyType}
	addressType  = &entity.Type{Name: "Address"}
	noteType     = &entity.Type{Name: "Note"}
)

// constructors refer back to the type vars, so they are bound here
func init() {
	customerType.New = func() entity.Entity { return newCustomer() }
	addressType.New = func() entity.Entity { return newAddress() }
	noteType.New = func() entity.Entity { return newNote() }
}

type customer struct {
	entity.VersionedBase

	mu      sync.Mutex
	name    string
	address *address
	notes   *entity.ToMany
}

func newCustomer() *customer {
	c := &customer{}
	c.Init(c, customerType)
	return c
}

func (c *customer) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *customer) SetName(name string) {
	c.mu.Lock()
	old := c.name
	c.name = name
	c.mu.Unlock()
	c.Changed("name", old, name)
}

func (c *customer) Address() *address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *customer) Reload(p entity.Payload, r entity.Resolver) error {
	if name, ok := p["name"].(string); ok {
		c.SetName(name)
	}
	if ap, ok := p.Object("address"); ok {
		e, err := r.Resolve(ap)
		if err != nil {
			return err
		}
		a, ok := e.(*address)
		if !ok {
			return fmt.Errorf("address has type %s", e.Type())
		}
		c.mu.Lock()
		c.address = a
		c.mu.Unlock()
	}
	return nil
}

func (c *customer) Snapshot() entity.Payload {
	return entity.Payload{"name": c.Name()}
}

func (c *customer) Related() []entity.Entity {
	if a := c.Address(); a != nil {
		return []entity.Entity{a}
	}
	return nil
}

func (c *customer) ToMany(property string) *entity.ToMany {
	if property != "notes" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notes == nil {
		c.notes = entity.NewToMany(c, "notes")
	}
	return c.notes
}

type address struct {
	entity.Base

	mu     sync.Mutex
	street string
}

func newAddress() *address {
	a := &address{}
	a.Init(a, addressType)
	return a
}

func (a *address) Street() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.street
}

func (a *address) Reload(p entity.Payload, _ entity.Resolver) error {
	if s, ok := p["street"].(string); ok {
		a.mu.Lock()
		a.street = s
		a.mu.Unlock()
	}
	return nil
}

func (a *address) Snapshot() entity.Payload {
	return entity.Payload{"street": a.Street()}
}

type note struct {
	entity.Base
}

func newNote() *note {
	n := &note{}
	n.Init(n, noteType)
	return n
}

func (n *note) Reload(entity.Payload, entity.Resolver) error { return nil }
func (n *note) Snapshot() entity.Payload                     { return entity.Payload{} }

// testURLs is a minimal URLBuilder
type testURLs struct{}

func (testURLs) EntityURL(_ signal.Action, typeName, id string) string {
	if id == "" {
		return "/" + typeName
	}
	return "/" + typeName + "/" + id
}

func (testURLs) RelationURL(typeName, id, property string) string {
	return "/" + typeName + "/" + id + "/" + property
}

func (testURLs) SearchURL(typeName string, query url.Values) string {
	return "/" + typeName + "?" + query.Encode()
}

type route func(req *Request) (*Response, error)

// fakeTransport answers requests from routes keyed by "METHOD url"
type fakeTransport struct {
	mu     sync.Mutex
	routes map[string]route
	calls  []*Request
	gate   chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{routes: make(map[string]route)}
}

func (f *fakeTransport) on(method, url string, r route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+url] = r
}

// hold blocks every request until the returned function is called
func (f *fakeTransport) hold() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	return func() { close(gate) }
}

func (f *fakeTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	r := f.routes[req.Method+" "+req.URL]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r == nil {
		return nil, &StatusError{Status: 500, Body: []byte("no route")}
	}
	return r(req)
}

func (f *fakeTransport) count(method, url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.URL == url {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last() *Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// decode round-trips v through JSON so every answer is a fresh document
// shaped like real server output
func decode(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}

func ok(body any) route {
	return func(*Request) (*Response, error) {
		return &Response{Status: 200, Body: decode(body), Total: -1}, nil
	}
}

func page(body any, total int) route {
	return func(*Request) (*Response, error) {
		return &Response{Status: 200, Body: decode(body), Total: total}, nil
	}
}

func fail(status int, body any) route {
	return func(*Request) (*Response, error) {
		var raw []byte
		if body != nil {
			raw, _ = json.Marshal(body)
		}
		return nil, &StatusError{Status: status, Body: raw}
	}
}

func notFound(typeName string, id int) route {
	return fail(404, map[string]any{"error": map[string]any{"kind": "not-found", "type": typeName, "id": id}})
}

type customerDoc = map[string]any

func customerJSON(id, version int, name string) customerDoc {
	return customerDoc{"_type": "Customer", "id": id, "version": version, "name": name}
}

// recorder collects published signals
type recorder struct {
	mu      sync.Mutex
	signals []*signal.ActionCompleted
}

func (r *recorder) handle(s *signal.ActionCompleted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func (r *recorder) all() []*signal.ActionCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*signal.ActionCompleted(nil), r.signals...)
}

func (r *recorder) lastSignal() *signal.ActionCompleted {
	all := r.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

type harness struct {
	dao       Dao
	cache     cache.Cache
	transport *fakeTransport
	signals   *recorder
	logs      *observer.ObservedLogs
}

func newHarness(t *testing.T, configure ...func(cfg *Config, deps *Deps)) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.Wrap(zap.New(core))

	c, err := cache.New(log, &cache.Config{Name: "test"})
	require.NoError(t, err)

	h := &harness{cache: c, transport: newFakeTransport(), signals: &recorder{}, logs: logs}
	bus := signal.NewBus(log)
	bus.Subscribe(h.signals.handle)

	cfg := &Config{Name: "test", BackgroundTimeout: 5 * time.Second}
	deps := &Deps{
		Cache:     c,
		Transport: h.transport,
		URLs:      testURLs{},
		Registry:  entity.NewRegistry(customerType, addressType, noteType),
		Bus:       bus,
		Origin:    "test-process",
	}
	for _, fn := range configure {
		fn(cfg, deps)
	}
	h.dao, err = New(log, cfg, deps)
	require.NoError(t, err)
	t.Cleanup(h.dao.Wait)
	return h
}

func (h *harness) waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
