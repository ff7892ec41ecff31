package ambient

import (
	"sync"
	"testing"
)

func TestSnapshotPropagatesSlotValues(t *testing.T) {
	r := NewRegistry()
	payload := &struct{ name string }{name: "session"}
	r.Push(SlotProfiler, payload)
	defer func() {
		if _, err := r.Pop(SlotProfiler); err != nil {
			t.Errorf("cleanup pop: %v", err)
		}
	}()

	snap := r.Capture()

	var wg sync.WaitGroup
	wg.Add(1)
	var seen any
	var after any
	go func() {
		defer wg.Done()
		guard := snap.Apply()
		seen = r.Get(SlotProfiler)
		guard.Release()
		after = r.Get(SlotProfiler)
	}()
	wg.Wait()

	if seen != payload {
		t.Fatalf("spawned goroutine saw %v, want propagated payload", seen)
	}
	if after != nil {
		t.Fatalf("value survived guard release: %v", after)
	}
}

func TestSnapshotIsolatesBothSides(t *testing.T) {
	r := NewRegistry()
	r.Push(SlotProfiler, "before-spawn")
	snap := r.Capture()

	// Mutation on the spawning side after capture is invisible to the task.
	r.Push(SlotProfiler, "after-spawn")

	var wg sync.WaitGroup
	wg.Add(1)
	var seen any
	go func() {
		defer wg.Done()
		guard := snap.Apply()
		defer guard.Release()
		seen = r.Get(SlotProfiler)
		// Mutation inside the task must not leak back out.
		r.Push(SlotDebug, "task-only")
		defer func() {
			if _, err := r.Pop(SlotDebug); err != nil {
				t.Errorf("task pop: %v", err)
			}
		}()
	}()
	wg.Wait()

	if seen != "before-spawn" {
		t.Fatalf("task saw %v, want before-spawn", seen)
	}
	if got := r.Get(SlotDebug); got != nil {
		t.Fatalf("task mutation leaked to parent: %v", got)
	}

	if _, err := r.Pop(SlotProfiler); err != nil {
		t.Fatalf("pop after-spawn: %v", err)
	}
	if _, err := r.Pop(SlotProfiler); err != nil {
		t.Fatalf("pop before-spawn: %v", err)
	}
}

func TestSnapshotReplaysSettings(t *testing.T) {
	r := NewRegistry()

	// Per-goroutine setting backed by a gid-keyed map, the way subsystems
	// actually hold lineage state.
	var mu sync.Mutex
	values := map[uint64]int64{}
	get := func() int64 {
		mu.Lock()
		defer mu.Unlock()
		return values[GoroutineID()]
	}
	set := func(v int64) {
		mu.Lock()
		defer mu.Unlock()
		values[GoroutineID()] = v
	}
	if err := r.RegisterSetting("lineage", get, set); err != nil {
		t.Fatalf("RegisterSetting: %v", err)
	}

	set(7)
	snap := r.Capture()

	var wg sync.WaitGroup
	wg.Add(1)
	var during, after int64
	go func() {
		defer wg.Done()
		guard := snap.Apply()
		during = get()
		guard.Release()
		after = get()
	}()
	wg.Wait()

	if during != 7 {
		t.Fatalf("setting during task = %d, want 7", during)
	}
	if after != 0 {
		t.Fatalf("setting after release = %d, want 0", after)
	}
}

func TestGuardSkipsConsumedSlot(t *testing.T) {
	r := NewRegistry()
	payload := &struct{ n int }{n: 1}
	r.Push(SlotProfiler, payload)
	snap := r.Capture()
	if _, err := r.Pop(SlotProfiler); err != nil {
		t.Fatalf("parent pop: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		guard := snap.Apply()
		// The task consumes the propagated value itself, as a cross-
		// goroutine disable would.
		if _, err := r.Pop(SlotProfiler); err != nil {
			t.Errorf("task pop: %v", err)
		}
		guard.Release()
	}()
	wg.Wait()

	if got := r.Get(SlotProfiler); got != nil {
		t.Fatalf("registry not clean after consumed slot: %v", got)
	}
}
