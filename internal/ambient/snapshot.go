package ambient

// Snapshot is the ambient state of one goroutine at one point in time:
// the current (topmost) value of every slot plus every registered setting.
// It is the unit of propagation across task spawns.
type Snapshot struct {
	reg      *Registry
	values   [numSlots]any
	present  [numSlots]bool
	settings []capturedSetting
}

type capturedSetting struct {
	set   func(int64)
	get   func() int64
	value int64
}

// Capture snapshots the calling goroutine's ambient state. Later pushes and
// pops on the capturing goroutine do not alter the snapshot.
func (r *Registry) Capture() Snapshot {
	gid := GoroutineID()
	snap := Snapshot{reg: r}

	r.mu.Lock()
	if g := r.goroutines[gid]; g != nil {
		for slot := Slot(0); slot < numSlots; slot++ {
			if n := len(g.slots[slot]); n > 0 {
				snap.values[slot] = g.slots[slot][n-1]
				snap.present[slot] = true
			}
		}
	}
	settings := r.settings
	r.mu.Unlock()

	// Getters run outside the registry lock; they read subsystem state,
	// not the registry.
	snap.settings = make([]capturedSetting, 0, len(settings))
	for _, s := range settings {
		snap.settings = append(snap.settings, capturedSetting{
			set:   s.set,
			get:   s.get,
			value: s.get(),
		})
	}
	return snap
}

// Capture snapshots the calling goroutine against the default registry.
func Capture() Snapshot { return Default.Capture() }

// Guard undoes one Apply. Release must run on the same goroutine that
// called Apply, after the spawned work finishes.
type Guard struct {
	reg    *Registry
	pushed [numSlots]any
	isset  [numSlots]bool
	prev   []capturedSetting
}

// Apply installs the snapshot on the calling goroutine: every captured slot
// value is pushed, and every captured setting is replayed through its
// setter. The returned Guard restores the goroutine's prior state.
func (s Snapshot) Apply() *Guard {
	g := &Guard{reg: s.reg}

	for slot := Slot(0); slot < numSlots; slot++ {
		if s.present[slot] {
			s.reg.Push(slot, s.values[slot])
			g.pushed[slot] = s.values[slot]
			g.isset[slot] = true
		}
	}

	g.prev = make([]capturedSetting, len(s.settings))
	for i, cs := range s.settings {
		g.prev[i] = capturedSetting{set: cs.set, value: cs.get()}
		cs.set(cs.value)
	}
	return g
}

// Release pops the slot values Apply pushed and replays the pre-Apply
// setting values, in reverse registration order. A slot whose propagated
// value was already consumed by the task itself is skipped.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	for i := len(g.prev) - 1; i >= 0; i-- {
		g.prev[i].set(g.prev[i].value)
	}
	for slot := Slot(0); slot < numSlots; slot++ {
		if !g.isset[slot] {
			continue
		}
		// Pop only if the propagated value is still on top; a task that
		// popped it itself (disable from another goroutine) owns that pop.
		if cur := g.reg.Get(slot); cur != nil && cur == g.pushed[slot] {
			_, _ = g.reg.Pop(slot)
		}
	}
}
