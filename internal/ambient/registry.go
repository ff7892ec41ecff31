package ambient

import (
	"errors"
	"sync"
)

// Slot identifies one kind of ambient payload.
type Slot uint8

const (
	// SlotProfiler holds the active profiling session for the goroutine.
	SlotProfiler Slot = iota
	// SlotDebug holds auxiliary debug payloads attached by the runtime.
	SlotDebug

	numSlots
)

// String returns the string representation of Slot.
func (s Slot) String() string {
	switch s {
	case SlotProfiler:
		return "profiler"
	case SlotDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ErrEmptySlot is returned by Pop when the slot has no value on the calling
// goroutine. Popping an empty slot is a caller contract violation; the
// registry reports it instead of panicking so that callers decide severity.
var ErrEmptySlot = errors.New("ambient: pop on empty slot")

// Registry is the process-wide scoped context store. The zero value is not
// usable; construct with NewRegistry. Tests may instantiate isolated
// registries; production code shares Default.
type Registry struct {
	mu         sync.Mutex
	goroutines map[uint64]*gstate
	settings   []setting
	names      map[string]struct{}
}

// gstate holds one goroutine's slot stacks. An entry exists only while at
// least one stack is non-empty, so finished goroutines leave nothing behind.
type gstate struct {
	slots [numSlots][]any
}

func (g *gstate) empty() bool {
	for i := range g.slots {
		if len(g.slots[i]) > 0 {
			return false
		}
	}
	return true
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		goroutines: make(map[uint64]*gstate),
		names:      make(map[string]struct{}),
	}
}

// Default is the registry shared by the runtime.
var Default = NewRegistry()

// Push installs v as the current value for slot on the calling goroutine,
// shadowing the previous value.
func (r *Registry) Push(slot Slot, v any) {
	gid := GoroutineID()

	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.goroutines[gid]
	if g == nil {
		g = &gstate{}
		r.goroutines[gid] = g
	}
	g.slots[slot] = append(g.slots[slot], v)
}

// Pop removes the most recently pushed value for slot on the calling
// goroutine and returns it, restoring whatever was visible before. It
// returns ErrEmptySlot when nothing was pushed; no state is mutated then.
func (r *Registry) Pop(slot Slot) (any, error) {
	gid := GoroutineID()

	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.goroutines[gid]
	if g == nil || len(g.slots[slot]) == 0 {
		return nil, ErrEmptySlot
	}

	stack := g.slots[slot]
	v := stack[len(stack)-1]
	g.slots[slot] = stack[:len(stack)-1]
	if g.empty() {
		delete(r.goroutines, gid)
	}
	return v, nil
}

// Get returns the current value for slot on the calling goroutine, or nil
// when the slot is empty.
func (r *Registry) Get(slot Slot) any {
	gid := GoroutineID()

	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.goroutines[gid]
	if g == nil || len(g.slots[slot]) == 0 {
		return nil
	}
	return g.slots[slot][len(g.slots[slot])-1]
}

// Push installs v for slot on the default registry.
func Push(slot Slot, v any) { Default.Push(slot, v) }

// Pop removes the current value for slot on the default registry.
func Pop(slot Slot) (any, error) { return Default.Pop(slot) }

// Get returns the current value for slot on the default registry.
func Get(slot Slot) any { return Default.Get(slot) }
