package ch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dailyyoga/objsync/logger"
)

type testRow struct {
	table string
	id    int
}

func (r testRow) Table() string     { return r.table }
func (r testRow) Columns() []string { return []string{"id"} }
func (r testRow) Values() []any     { return []any{r.id} }

type badRow struct{}

func (badRow) Table() string     { return "bad" }
func (badRow) Columns() []string { return []string{"a", "b"} }
func (badRow) Values() []any     { return []any{1} }

type insert struct {
	table   string
	columns []string
	rows    [][]any
}

type fakeInserter struct {
	mu      sync.Mutex
	inserts []insert
	err     error
	notify  chan struct{}
}

func newFakeInserter() *fakeInserter {
	return &fakeInserter{notify: make(chan struct{}, 64)}
}

func (f *fakeInserter) Insert(_ context.Context, table string, columns []string, rows [][]any) error {
	f.mu.Lock()
	f.inserts = append(f.inserts, insert{table: table, columns: columns, rows: rows})
	err := f.err
	f.mu.Unlock()
	f.notify <- struct{}{}
	return err
}

func (f *fakeInserter) all() []insert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]insert(nil), f.inserts...)
}

func (f *fakeInserter) rows() int {
	n := 0
	for _, in := range f.all() {
		n += len(in.rows)
	}
	return n
}

func waitInsert(t *testing.T, f *fakeInserter) {
	t.Helper()
	select {
	case <-f.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an insert")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := (&Config{Hosts: []string{"localhost:9000"}, Username: "default", Writer: &WriterConfig{}}).MergeDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.Writer.FlushSize != 5000 || cfg.Writer.InsertTimeout != 30*time.Second {
		t.Errorf("writer defaults not merged: %+v", cfg.Writer)
	}

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"no hosts", &Config{Username: "u"}},
		{"no user", &Config{Hosts: []string{"h"}}},
		{"min above size", &Config{Hosts: []string{"h"}, Username: "u", Writer: &WriterConfig{FlushSize: 10, MinFlushSize: 20}}},
		{"negative wait", &Config{Hosts: []string{"h"}, Username: "u", Writer: &WriterConfig{MaxWaitTime: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.MergeDefaults().Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInsertQuery(t *testing.T) {
	got := insertQuery("objsync_actions", []string{"at", "action"})
	want := "INSERT INTO `objsync_actions` (`at`, `action`)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriter_FlushSize(t *testing.T) {
	ins := newFakeInserter()
	w := NewWriter(logger.NewNop(), &WriterConfig{FlushInterval: time.Hour, FlushSize: 3}, ins)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(context.Background(), testRow{"a", 1}, testRow{"b", 2}, testRow{"a", 3}); err != nil {
		t.Fatal(err)
	}
	waitInsert(t, ins)
	waitInsert(t, ins)

	all := ins.all()
	if len(all) != 2 {
		t.Fatalf("expected one insert per table, got %d", len(all))
	}
	if all[0].table != "a" || len(all[0].rows) != 2 {
		t.Errorf("unexpected first insert %+v", all[0])
	}
	if all[1].table != "b" || len(all[1].rows) != 1 {
		t.Errorf("unexpected second insert %+v", all[1])
	}
}

func TestWriter_IntervalFlush(t *testing.T) {
	ins := newFakeInserter()
	w := NewWriter(nil, &WriterConfig{FlushInterval: 10 * time.Millisecond, FlushSize: 100}, ins)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(context.Background(), testRow{"a", 1}); err != nil {
		t.Fatal(err)
	}
	waitInsert(t, ins)
	if ins.rows() != 1 {
		t.Errorf("expected 1 row, got %d", ins.rows())
	}
}

func TestWriter_MinFlushSizeHoldsSmallBatches(t *testing.T) {
	ins := newFakeInserter()
	w := NewWriter(nil, &WriterConfig{FlushInterval: 5 * time.Millisecond, FlushSize: 100, MinFlushSize: 10, MaxWaitTime: time.Hour}, ins)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if err := w.Write(context.Background(), testRow{"a", 1}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if n := len(ins.all()); n != 0 {
		t.Fatalf("expected no insert below min flush size, got %d", n)
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if ins.rows() != 1 {
		t.Errorf("close must flush pending rows, got %d", ins.rows())
	}
}

func TestWriter_CloseFlushesAndRejects(t *testing.T) {
	ins := newFakeInserter()
	w := NewWriter(nil, &WriterConfig{FlushInterval: time.Hour, FlushSize: 100}, ins)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	for i := range 5 {
		if err := w.Write(context.Background(), testRow{"a", i}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if ins.rows() != 5 {
		t.Errorf("expected 5 rows flushed on close, got %d", ins.rows())
	}
	if err := w.Write(context.Background(), testRow{"a", 9}); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestWriter_Rejects(t *testing.T) {
	w := NewWriter(nil, nil, newFakeInserter())
	defer w.Close()

	if err := w.Write(context.Background(), testRow{"a", 1}); !errors.Is(err, ErrWriterNotStarted) {
		t.Errorf("expected ErrWriterNotStarted, got %v", err)
	}
	if err := w.Write(context.Background(), badRow{}); err == nil {
		t.Error("expected column mismatch")
	}
}

func TestWriter_InsertFailureIsLogged(t *testing.T) {
	ins := newFakeInserter()
	ins.err = errors.New("boom")
	w := NewWriter(nil, &WriterConfig{FlushInterval: time.Hour, FlushSize: 1}, ins)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(context.Background(), testRow{"a", 1}); err != nil {
		t.Fatal(err)
	}
	waitInsert(t, ins)
	if err := w.Write(context.Background(), testRow{"a", 2}); err != nil {
		t.Errorf("writer must keep accepting rows after a failed insert: %v", err)
	}
}
