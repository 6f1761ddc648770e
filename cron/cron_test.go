package cron

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newScheduler(t *testing.T, mws ...Middleware) (Scheduler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := New(logger.Wrap(zap.New(core)), nil, mws...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s, logs
}

func TestConfig_Validate(t *testing.T) {
	if err := (&Config{}).MergeDefaults().Validate(); err != nil {
		t.Fatalf("expected valid defaults, got %v", err)
	}
	if err := (&Config{Location: "Nowhere/Invalid"}).MergeDefaults().Validate(); err == nil {
		t.Error("expected error for unknown location")
	}
	if err := (&Config{TaskTimeout: -1}).MergeDefaults().Validate(); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestRunNow_RunsChainInOrderWithSharedValues(t *testing.T) {
	s, _ := newScheduler(t)

	var got []string
	produce := NewTask("produce", func(ctx context.Context) error {
		got = append(got, "produce")
		SharedFrom(ctx).Set("count", 42)
		return nil
	})
	consume := NewTask("consume", func(ctx context.Context) error {
		n, ok := Value[int](ctx, "count")
		if !ok || n != 42 {
			t.Errorf("expected shared count 42, got %v %v", n, ok)
		}
		got = append(got, "consume")
		return nil
	})
	if err := s.Add(Job{Name: "pipeline", Spec: "@every 1h", Tasks: []Task{produce, consume}}); err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow(context.Background(), "pipeline"); err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "produce,consume" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestRunNow_FailureAbortsChain(t *testing.T) {
	s, logs := newScheduler(t)
	boom := errors.New("boom")
	ran := false
	err := s.Add(Job{Name: "chain", Spec: "@every 1h", Tasks: []Task{
		NewTask("fail", func(context.Context) error { return boom }),
		NewTask("never", func(context.Context) error { ran = true; return nil }),
	}})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow(context.Background(), "chain"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ran {
		t.Error("task after failure must not run")
	}
	entries := logs.FilterMessage("task failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["task"] != "chain:fail" {
		t.Errorf("expected one failure for chain:fail, got %v", entries)
	}
}

func TestRecovery_ConvertsPanic(t *testing.T) {
	s, logs := newScheduler(t)
	if err := s.Add(Job{Name: "panicky", Spec: "@every 1h", Tasks: []Task{
		NewTask("explode", func(context.Context) error { panic("kaboom") }),
	}}); err != nil {
		t.Fatal(err)
	}

	err := s.RunNow(context.Background(), "panicky")
	if !errors.Is(err, routine.ErrPanicRecovered) {
		t.Fatalf("expected recovered panic, got %v", err)
	}
	if logs.FilterMessage("goroutine panicked").Len() != 1 {
		t.Error("panic must be logged")
	}
}

func TestTimeout_BoundsTask(t *testing.T) {
	task := applyMiddlewares(NewTask("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), Timeout(10*time.Millisecond))

	if err := task.Run(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	mark := func(name string) Middleware {
		return func(next Task) Task {
			return NewTask(next.Name(), func(ctx context.Context) error {
				mu.Lock()
				trace = append(trace, name)
				mu.Unlock()
				return next.Run(ctx)
			})
		}
	}
	task := applyMiddlewares(NewTask("t", func(context.Context) error { return nil }), mark("outer"), mark("inner"))
	if err := task.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if strings.Join(trace, ",") != "outer,inner" {
		t.Errorf("unexpected order %v", trace)
	}
}

func TestAdd_Errors(t *testing.T) {
	s, _ := newScheduler(t)
	task := NewTask("t", func(context.Context) error { return nil })

	if err := s.Add(Job{Name: "empty", Spec: "@every 1h"}); !errors.Is(err, ErrNoTasks) {
		t.Errorf("expected ErrNoTasks, got %v", err)
	}
	if err := s.Add(Job{Name: "bad", Spec: "not a spec", Tasks: []Task{task}}); err == nil {
		t.Error("expected invalid spec error")
	}
	if err := s.Add(Job{Name: "ok", Spec: "0 * * * * *", Tasks: []Task{task}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(Job{Name: "ok", Spec: "@every 1h", Tasks: []Task{task}}); err == nil {
		t.Error("expected duplicate job error")
	}
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Error("expected unknown job error")
	}
	if got := s.Jobs(); len(got) != 1 || got[0] != "ok" {
		t.Errorf("unexpected jobs %v", got)
	}

	s.Close()
	if err := s.Add(Job{Name: "late", Spec: "@every 1h", Tasks: []Task{task}}); !errors.Is(err, ErrSchedulerClosed) {
		t.Errorf("expected ErrSchedulerClosed, got %v", err)
	}
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s, _ := newScheduler(t)
	var runs atomic.Int32
	if err := s.Add(Job{Name: "tick", Spec: "* * * * * *", Tasks: []Task{
		NewTask("count", func(context.Context) error { runs.Add(1); return nil }),
	}}); err != nil {
		t.Fatal(err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
