package dedup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDo_CoalescesConcurrentCalls(t *testing.T) {
	var g Group
	var calls atomic.Int32
	gate := make(chan struct{})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	shared := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err, s := Do(&g, "Customer@7", func() (string, error) {
				calls.Add(1)
				<-gate
				return "payload", nil
			})
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
			results[i], shared[i] = v, s
		}(i)
	}
	waitFor(t, "callers attached", func() bool { return g.Waiting("Customer@7") == callers })
	close(gate)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fn ran %d times, want 1", n)
	}
	for i := range results {
		if results[i] != "payload" || !shared[i] {
			t.Errorf("caller %d got %q shared=%v", i, results[i], shared[i])
		}
	}
	if g.Waiting("Customer@7") != 0 {
		t.Errorf("waiting = %d after completion", g.Waiting("Customer@7"))
	}
}

func TestDo_DistinctKeysRunIndependently(t *testing.T) {
	var g Group
	var calls atomic.Int32
	for _, key := range []string{"a", "b", "a"} {
		_, _, shared := g.Do(key, func() (any, error) {
			calls.Add(1)
			return nil, nil
		})
		if shared {
			t.Errorf("sequential call for %q reported shared", key)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("fn ran %d times, want 3", calls.Load())
	}
}

func TestDo_ErrorIsShared(t *testing.T) {
	var g Group
	boom := errors.New("boom")
	_, err, _ := Do(&g, "k", func() (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
}

func TestForget_StartsNewCall(t *testing.T) {
	var g Group
	gate := make(chan struct{})
	done := make(chan struct{})
	go func() {
		g.Do("k", func() (any, error) {
			<-gate
			return 1, nil
		})
		close(done)
	}()
	waitFor(t, "first call attached", func() bool { return g.Waiting("k") == 1 })

	g.Forget("k")
	v, _, shared := Do(&g, "k", func() (int, error) { return 2, nil })
	if v != 2 || shared {
		t.Errorf("got %d shared=%v, want a fresh call", v, shared)
	}
	close(gate)
	<-done
}

func TestDoChan_SharesResult(t *testing.T) {
	var g Group
	var calls atomic.Int32
	gate := make(chan struct{})
	fn := func() (any, error) {
		calls.Add(1)
		<-gate
		return "v", nil
	}

	first := g.DoChan("k", fn)
	second := g.DoChan("k", fn)
	waitFor(t, "callers attached", func() bool { return g.Waiting("k") == 2 })
	close(gate)

	for _, ch := range []<-chan Result{first, second} {
		r := <-ch
		if r.Err != nil || r.Val != "v" {
			t.Errorf("got %+v", r)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fn ran %d times, want 1", calls.Load())
	}
	waitFor(t, "callers detached", func() bool { return g.Waiting("k") == 0 })
}
