package ambient

import (
	"errors"
	"sync"
	"testing"
)

func TestPushGetPop(t *testing.T) {
	r := NewRegistry()

	if got := r.Get(SlotProfiler); got != nil {
		t.Fatalf("Get on empty slot = %v, want nil", got)
	}

	r.Push(SlotProfiler, "outer")
	r.Push(SlotProfiler, "inner")
	if got := r.Get(SlotProfiler); got != "inner" {
		t.Fatalf("Get = %v, want inner", got)
	}

	v, err := r.Pop(SlotProfiler)
	if err != nil {
		t.Fatalf("Pop error: %v", err)
	}
	if v != "inner" {
		t.Fatalf("Pop = %v, want inner", v)
	}
	if got := r.Get(SlotProfiler); got != "outer" {
		t.Fatalf("Get after pop = %v, want outer", got)
	}

	if _, err := r.Pop(SlotProfiler); err == nil {
		t.Fatalf("expected error after draining slot")
	}
}

func TestPopEmptySlot(t *testing.T) {
	r := NewRegistry()
	_, err := r.Pop(SlotDebug)
	if !errors.Is(err, ErrEmptySlot) {
		t.Fatalf("Pop error = %v, want ErrEmptySlot", err)
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	r := NewRegistry()
	r.Push(SlotProfiler, 1)
	r.Push(SlotDebug, 2)

	if got := r.Get(SlotProfiler); got != 1 {
		t.Fatalf("SlotProfiler = %v, want 1", got)
	}
	if got := r.Get(SlotDebug); got != 2 {
		t.Fatalf("SlotDebug = %v, want 2", got)
	}

	if _, err := r.Pop(SlotProfiler); err != nil {
		t.Fatalf("Pop SlotProfiler: %v", err)
	}
	if got := r.Get(SlotDebug); got != 2 {
		t.Fatalf("SlotDebug after foreign pop = %v, want 2", got)
	}
	if _, err := r.Pop(SlotDebug); err != nil {
		t.Fatalf("Pop SlotDebug: %v", err)
	}
}

func TestGoroutinesDoNotShareStacks(t *testing.T) {
	r := NewRegistry()
	r.Push(SlotProfiler, "parent")
	defer func() {
		if _, err := r.Pop(SlotProfiler); err != nil {
			t.Errorf("cleanup pop: %v", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	var got any
	go func() {
		defer wg.Done()
		got = r.Get(SlotProfiler)
	}()
	wg.Wait()

	if got != nil {
		t.Fatalf("spawned goroutine saw %v without propagation, want nil", got)
	}
}

func TestGoroutineID(t *testing.T) {
	main := GoroutineID()
	if main == 0 {
		t.Fatalf("GoroutineID returned 0 on a live goroutine")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var other uint64
	go func() {
		defer wg.Done()
		other = GoroutineID()
	}()
	wg.Wait()

	if other == 0 || other == main {
		t.Fatalf("spawned goroutine ID = %d, main = %d; want distinct non-zero", other, main)
	}
}

func TestRegisterSettingRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	get := func() int64 { return 0 }
	set := func(int64) {}

	if err := r.RegisterSetting("depth", get, set); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.RegisterSetting("depth", get, set); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
	if err := r.RegisterSetting("nil", nil, set); err == nil {
		t.Fatalf("nil getter accepted")
	}
}
