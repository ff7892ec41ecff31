package launch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fathom/internal/ambient"
)

func TestGoPropagatesAmbientState(t *testing.T) {
	reg := ambient.NewRegistry()
	payload := &struct{ tag string }{tag: "session"}
	reg.Push(ambient.SlotProfiler, payload)
	defer func() {
		if _, err := reg.Pop(ambient.SlotProfiler); err != nil {
			t.Errorf("cleanup pop: %v", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	var seen any
	GoWith(reg, func() {
		defer wg.Done()
		seen = reg.Get(ambient.SlotProfiler)
	})
	wg.Wait()

	if seen != payload {
		t.Fatalf("task saw %v, want propagated payload", seen)
	}
}

func TestGoIsolatesAfterSpawn(t *testing.T) {
	reg := ambient.NewRegistry()
	reg.Push(ambient.SlotProfiler, "original")

	release := make(chan struct{})
	done := make(chan any, 1)
	GoWith(reg, func() {
		<-release
		done <- reg.Get(ambient.SlotProfiler)
	})

	// Mutate the parent after the spawn; the task must not see it.
	reg.Push(ambient.SlotProfiler, "late")
	close(release)

	if seen := <-done; seen != "original" {
		t.Fatalf("task saw %v, want original", seen)
	}

	for i := 0; i < 2; i++ {
		if _, err := reg.Pop(ambient.SlotProfiler); err != nil {
			t.Fatalf("cleanup pop %d: %v", i, err)
		}
	}
}

func TestGroupPropagatesPerSpawnState(t *testing.T) {
	reg := ambient.NewRegistry()
	g, _ := WithContextIn(reg, context.Background())

	reg.Push(ambient.SlotDebug, "first")
	var mu sync.Mutex
	var seen []any
	record := func() error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, reg.Get(ambient.SlotDebug))
		return nil
	}

	g.Go(record)
	if _, err := reg.Pop(ambient.SlotDebug); err != nil {
		t.Fatalf("pop: %v", err)
	}
	reg.Push(ambient.SlotDebug, "second")
	g.Go(record)
	if _, err := reg.Pop(ambient.SlotDebug); err != nil {
		t.Fatalf("pop: %v", err)
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("seen = %v, want two entries", seen)
	}
	got := map[any]bool{seen[0]: true, seen[1]: true}
	if !got["first"] || !got["second"] {
		t.Fatalf("seen = %v, want first and second", seen)
	}
}

func TestGroupCollectsErrors(t *testing.T) {
	reg := ambient.NewRegistry()
	g, _ := WithContextIn(reg, context.Background())
	g.SetLimit(2)

	boom := errors.New("boom")
	g.Go(func() error { return nil })
	g.Go(func() error { return boom })

	if err := g.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want boom", err)
	}
}
