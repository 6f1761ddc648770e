package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dailyyoga/objsync/crud"
	"github.com/dailyyoga/objsync/entity"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/signal"
)

func newTestTransport(t *testing.T, h http.HandlerFunc, token TokenSource) (*Transport, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tr, err := New(logger.NewNop(), &Config{BaseURL: srv.URL + "/api/", Token: token}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr, srv
}

func TestConfig_Validate(t *testing.T) {
	cfg := (&Config{BaseURL: "https://example.com"}).MergeDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.UserAgent != "objsync" || cfg.MaxResponseBytes != 16<<20 {
		t.Errorf("defaults not merged: %+v", cfg)
	}

	for _, base := range []string{"", "example.com", "/relative"} {
		if err := (&Config{BaseURL: base}).MergeDefaults().Validate(); err == nil {
			t.Errorf("base %q: expected error", base)
		}
	}
}

func TestPathBuilder(t *testing.T) {
	b := PathBuilder{BaseURL: "https://example.com/api/"}
	tests := []struct {
		got, want string
	}{
		{b.EntityURL(signal.ActionCreate, "Customer", ""), "https://example.com/api/Customer"},
		{b.EntityURL(signal.ActionRetrieve, "Customer", "7"), "https://example.com/api/Customer/7"},
		{b.EntityURL(signal.ActionRetrieve, "Customer", "a/b"), "https://example.com/api/Customer/a%2Fb"},
		{b.RelationURL("Customer", "7", "notes"), "https://example.com/api/Customer/7/notes"},
		{b.SearchURL("Customer", url.Values{"name": {"Ada"}, "city": {"Rome"}}), "https://example.com/api/Customer?city=Rome&name=Ada"},
		{b.SearchURL("Customer", nil), "https://example.com/api/Customer"},
		{PathBuilder{}.EntityURL(signal.ActionDelete, "Note", "1"), "/Note/1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTransport_GetObject(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/Customer/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing accept header")
		}
		if r.Header.Get("Range") != "" {
			t.Errorf("unexpected range header %q", r.Header.Get("Range"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"_type":"Customer","id":7,"version":2}`)
	}, nil)

	resp, err := tr.Do(context.Background(), &crud.Request{Method: http.MethodGet, URL: "/Customer/7"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	p, ok := entity.AsPayload(resp.Body)
	if !ok {
		t.Fatalf("expected an object, got %T", resp.Body)
	}
	if p.ID() != "7" || p.TypeName() != "Customer" {
		t.Errorf("unexpected payload %v", p)
	}
	if resp.Total != -1 {
		t.Errorf("expected unknown total, got %d", resp.Total)
	}
}

func TestTransport_RangeAndTotal(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "items=0-24" {
			t.Errorf("expected range items=0-24, got %q", got)
		}
		w.Header().Set("Content-Range", "items 0-1/100")
		_, _ = io.WriteString(w, `[{"id":1},{"id":2}]`)
	}, nil)

	resp, err := tr.Do(context.Background(), &crud.Request{
		Method: http.MethodGet,
		URL:    "/Customer/7/notes",
		Range:  &crud.Range{Start: 0, End: 24},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	list, ok := resp.Body.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected a list of 2, got %v", resp.Body)
	}
	if resp.Total != 100 {
		t.Errorf("expected total 100, got %d", resp.Total)
	}
}

func TestParseTotal(t *testing.T) {
	tests := map[string]int{
		"":                -1,
		"items 0-24/100":  100,
		"items 0-24/*":    -1,
		"items 0-0/1":     1,
		"garbage":         -1,
		"items 0-24/-5":   -1,
		"items 0-24/ 42 ": 42,
	}
	for in, want := range tests {
		if got := parseTotal(in); got != want {
			t.Errorf("parseTotal(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestTransport_PostBodyAndToken(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["name"] != "Ada" {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"_type":"Customer","id":42}`)
	}, func(context.Context) (string, error) { return "secret", nil })

	resp, err := tr.Do(context.Background(), &crud.Request{
		Method: http.MethodPost,
		URL:    "/Customer",
		Body:   entity.Payload{"_type": "Customer", "name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.Status)
	}
}

func TestTransport_TokenFailure(t *testing.T) {
	called := false
	tr, _ := newTestTransport(t, func(http.ResponseWriter, *http.Request) { called = true },
		func(context.Context) (string, error) { return "", errors.New("expired") })

	_, err := tr.Do(context.Background(), &crud.Request{Method: http.MethodGet, URL: "/Customer/7"})
	if err == nil {
		t.Fatal("expected token error")
	}
	if called {
		t.Error("request must not be sent without a token")
	}
}

func TestTransport_NoContent(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	resp, err := tr.Do(context.Background(), &crud.Request{Method: http.MethodDelete, URL: "/Customer/7"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Body != nil {
		t.Errorf("expected no body, got %v", resp.Body)
	}
}

func TestTransport_StatusError(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":{"kind":"conflict"}}`)
	}, nil)

	_, err := tr.Do(context.Background(), &crud.Request{Method: http.MethodPut, URL: "/Customer/7", Body: entity.Payload{}})
	var se *crud.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *crud.StatusError, got %v", err)
	}
	if se.Status != http.StatusConflict || string(se.Body) != `{"error":{"kind":"conflict"}}` {
		t.Errorf("unexpected status error %d %s", se.Status, se.Body)
	}
}

func TestTransport_MalformedJSON(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}, nil)

	_, err := tr.Do(context.Background(), &crud.Request{Method: http.MethodGet, URL: "/Customer/7"})
	if !errors.Is(err, entity.ErrFatal) {
		t.Fatalf("expected a contract violation, got %v", err)
	}
}

func TestTransport_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `["0123456789"]`)
	}))
	defer srv.Close()
	tr, err := New(nil, &Config{BaseURL: srv.URL, MaxResponseBytes: 4}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := tr.Do(context.Background(), &crud.Request{Method: http.MethodGet, URL: srv.URL + "/x"}); err == nil {
		t.Fatal("expected size error")
	}
}

func TestTransport_OversizedErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":{"kind":"conflict","message":"0123456789"}}`)
	}))
	defer srv.Close()
	tr, err := New(nil, &Config{BaseURL: srv.URL, MaxResponseBytes: 8}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = tr.Do(context.Background(), &crud.Request{Method: http.MethodPut, URL: "/Customer/7"})
	var se *crud.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *crud.StatusError, got %v", err)
	}
	if se.Status != http.StatusConflict {
		t.Errorf("Status = %d, want %d", se.Status, http.StatusConflict)
	}
	if len(se.Body) != 8 {
		t.Errorf("Body length = %d, want the 8 byte cap", len(se.Body))
	}
}

func TestTransport_Cancelled(t *testing.T) {
	block := make(chan struct{})
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	}, nil)
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Do(ctx, &crud.Request{Method: http.MethodGet, URL: "/Customer/7"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
