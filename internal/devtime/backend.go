// Package devtime abstracts the hardware timing backend the profiler uses
// to correlate device-side durations with the CPU clock. The runtime links
// a real backend when one is compiled in; everything else sees the no-op
// default and records CPU timestamps only.
package devtime

import (
	"errors"
	"sync/atomic"
	"time"
)

// Handle is an opaque device timing marker. Handles are only meaningful to
// the backend that issued them.
type Handle any

var (
	// ErrUnavailable indicates no usable timing backend is present.
	ErrUnavailable = errors.New("devtime: timing backend unavailable")
	// ErrDeviceMismatch indicates two handles were recorded on different
	// devices; elapsed time between them is undefined.
	ErrDeviceMismatch = errors.New("devtime: handles recorded on different devices")
)

// Backend is the pluggable device timing interface.
type Backend interface {
	// Available reports whether the backend can actually time anything.
	Available() bool

	// BeginRange opens a named device-side range (native tool passthrough).
	BeginRange(name string)
	// EndRange closes the innermost device-side range.
	EndRange()
	// PointMark emits a single named device-side marker.
	PointMark(name string)

	// Record enqueues a timing marker on the current device and returns its
	// handle, the device it landed on, and the CPU clock at enqueue time.
	// Depending on the backend this may synchronize or merely enqueue.
	Record() (Handle, int, time.Time)
	// Elapsed returns the microseconds between two handles recorded on the
	// same device.
	Elapsed(h1, h2 Handle) (float64, error)
	// Synchronize blocks until previously enqueued markers have resolved.
	Synchronize()
	// ForEachDevice runs fn once per device, with that device current.
	ForEachDevice(fn func(device int))
}

// nop is the default backend when no hardware timing is linked in.
type nop struct{}

func (nop) Available() bool         { return false }
func (nop) BeginRange(string)       {}
func (nop) EndRange()               {}
func (nop) PointMark(string)        {}
func (nop) Synchronize()            {}
func (nop) ForEachDevice(func(int)) {}

func (nop) Record() (Handle, int, time.Time) {
	return nil, -1, time.Now()
}

func (nop) Elapsed(Handle, Handle) (float64, error) {
	return 0, ErrUnavailable
}

// Nop is the no-op backend singleton.
var Nop Backend = nop{}

var active atomic.Pointer[Backend]

// Register installs the process-wide timing backend. Safe to call
// concurrently with profiling; later registrations win.
func Register(b Backend) {
	if b == nil {
		b = Nop
	}
	active.Store(&b)
}

// Active returns the registered backend, or the no-op default.
func Active() Backend {
	if p := active.Load(); p != nil {
		return *p
	}
	return Nop
}
