package devtime

import (
	"sync"
	"time"
)

// SimBackend is a deterministic in-memory timing backend used by tests and
// by tooling that needs device semantics without hardware. Every Record
// advances a per-device tick clock by one microsecond.
type SimBackend struct {
	mu      sync.Mutex
	devices int
	current int
	ticks   []int64  // per-device marker clock, microseconds
	ranges  []string // open BeginRange names, innermost last
	marks   []string // PointMark names in emission order
	syncs   int
}

type simHandle struct {
	device int
	tick   int64
}

// NewSimBackend constructs a simulated backend with the given device count.
func NewSimBackend(devices int) *SimBackend {
	if devices < 1 {
		devices = 1
	}
	return &SimBackend{
		devices: devices,
		ticks:   make([]int64, devices),
	}
}

// Available always reports true.
func (b *SimBackend) Available() bool { return true }

// SetDevice makes device current for subsequent Record calls.
func (b *SimBackend) SetDevice(device int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if device >= 0 && device < b.devices {
		b.current = device
	}
}

// BeginRange opens a named simulated range.
func (b *SimBackend) BeginRange(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ranges = append(b.ranges, name)
}

// EndRange closes the innermost simulated range.
func (b *SimBackend) EndRange() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.ranges); n > 0 {
		b.ranges = b.ranges[:n-1]
	}
}

// PointMark records a named simulated marker.
func (b *SimBackend) PointMark(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, name)
}

// Record issues a marker on the current device.
func (b *SimBackend) Record() (Handle, int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ticks[b.current]++
	return simHandle{device: b.current, tick: b.ticks[b.current]}, b.current, time.Now()
}

// Elapsed returns the tick distance between two simulated handles.
func (b *SimBackend) Elapsed(h1, h2 Handle) (float64, error) {
	a, ok1 := h1.(simHandle)
	z, ok2 := h2.(simHandle)
	if !ok1 || !ok2 {
		return 0, ErrUnavailable
	}
	if a.device != z.device {
		return 0, ErrDeviceMismatch
	}
	return float64(z.tick - a.tick), nil
}

// Synchronize counts synchronization requests; the simulation is always
// caught up.
func (b *SimBackend) Synchronize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncs++
}

// ForEachDevice runs fn once per device with that device current, then
// restores the previously current device.
func (b *SimBackend) ForEachDevice(fn func(device int)) {
	b.mu.Lock()
	prev := b.current
	devices := b.devices
	b.mu.Unlock()

	for d := 0; d < devices; d++ {
		b.SetDevice(d)
		fn(d)
	}
	b.SetDevice(prev)
}

// Marks returns the PointMark names seen so far.
func (b *SimBackend) Marks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.marks))
	copy(out, b.marks)
	return out
}

// OpenRanges returns the currently open BeginRange names, outermost first.
func (b *SimBackend) OpenRanges() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.ranges))
	copy(out, b.ranges)
	return out
}

// Syncs returns the number of Synchronize calls observed.
func (b *SimBackend) Syncs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncs
}
