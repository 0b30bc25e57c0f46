package keys_test

import (
	"sync"
	"testing"

	"subtrans/internal/keys"
)

func acquire(t *testing.T, pool *keys.Pool) string {
	t.Helper()
	key, ok := pool.Acquire()
	if !ok {
		t.Fatal("expected a key")
	}
	return key
}

func TestPoolRoundRobin(t *testing.T) {
	pool := keys.NewPool([]string{"a", "b", "c", "a", ""}, nil)
	if pool.Size() != 3 {
		t.Fatalf("size = %d, want 3", pool.Size())
	}
	var got []string
	for range 5 {
		got = append(got, acquire(t, pool))
	}
	want := []string{"a", "b", "c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
}

func TestPoolSkipsFailedKeyUntilLapCompletes(t *testing.T) {
	pool := keys.NewPool([]string{"a", "b", "c"}, nil)
	first := acquire(t, pool)
	pool.ReportFailure(first)

	if key := acquire(t, pool); key != "b" {
		t.Fatalf("got %q, want b", key)
	}
	if key := acquire(t, pool); key != "c" {
		t.Fatalf("got %q, want c", key)
	}
	if key := acquire(t, pool); key != "b" {
		t.Fatalf("failed key returned too early: got %q, want b", key)
	}
	if key := acquire(t, pool); key != "c" {
		t.Fatalf("got %q, want c", key)
	}
	if key := acquire(t, pool); key != "a" {
		t.Fatalf("failed key should be eligible after a full lap, got %q", key)
	}
}

func TestPoolExhaustionStartsFreshLap(t *testing.T) {
	pool := keys.NewPool([]string{"only"}, nil)
	pool.ReportFailure(acquire(t, pool))

	if pool.HasAvailableKey() {
		t.Fatal("cooled single key should not be available")
	}
	if key := acquire(t, pool); key != "only" {
		t.Fatalf("got %q, want the only key after a fresh lap", key)
	}
	if !pool.HasAvailableKey() {
		t.Fatal("cooldowns should be cleared by the fresh lap")
	}
}

func TestPoolAllKeysCoolingHandsOutCursorKey(t *testing.T) {
	pool := keys.NewPool([]string{"a", "b"}, nil)
	first, second := acquire(t, pool), acquire(t, pool)
	pool.ReportFailure(first)
	pool.ReportFailure(second)
	if pool.HasAvailableKey() {
		t.Fatal("both keys should be cooling")
	}

	var got []string
	for range 3 {
		got = append(got, acquire(t, pool))
	}
	want := []string{"a", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation after fresh lap = %v, want %v", got, want)
		}
	}
}

func TestPoolEmptyAndUnknownKeys(t *testing.T) {
	pool := keys.NewPool(nil, nil)
	if pool.HasAvailableKey() {
		t.Fatal("empty pool reported available key")
	}
	if _, ok := pool.Acquire(); ok {
		t.Fatal("empty pool returned a key")
	}
	pool.ReportFailure("ghost")

	pool.Initialize([]string{"x", "y"})
	held := acquire(t, pool)
	pool.Initialize([]string{"z"})
	pool.ReportFailure(held)
	if key := acquire(t, pool); key != "z" {
		t.Fatalf("got %q after reinitialize, want z", key)
	}
}

func TestPoolConcurrentUse(t *testing.T) {
	pool := keys.NewPool([]string{"a", "b", "c", "d"}, nil)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if key, ok := pool.Acquire(); ok {
					pool.ReportFailure(key)
				}
				pool.HasAvailableKey()
			}
		}()
	}
	wg.Wait()
	if pool.Size() != 4 {
		t.Fatalf("size changed to %d", pool.Size())
	}
}
