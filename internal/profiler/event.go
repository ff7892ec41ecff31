package profiler

import (
	"errors"
	"time"

	"fathom/internal/devtime"
)

// EventKind is the type of a recorded event.
type EventKind uint8

const (
	// Mark is a single point-in-time event.
	Mark EventKind = iota + 1
	// PushRange opens a named range.
	PushRange
	// PopRange closes the innermost open range on its goroutine.
	PopRange
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	switch k {
	case Mark:
		return "mark"
	case PushRange:
		return "push"
	case PopRange:
		return "pop"
	default:
		return "unknown"
	}
}

var (
	// ErrNoDeviceTiming indicates an event involved in a device elapsed
	// computation carries no device handle.
	ErrNoDeviceTiming = errors.New("profiler: event was not recorded with device timing")
)

// Event is one observed occurrence in a session's per-goroutine list.
type Event struct {
	Kind EventKind
	// Name is empty for PopRange events.
	Name string
	// GID identifies the recording goroutine.
	GID uint64
	// CPUTime is the monotonic clock reading taken at record time.
	CPUTime time.Time
	// Handle is the opaque device timing marker, nil unless device timing
	// was requested for this event.
	Handle devtime.Handle
	// Device is the device the handle landed on, -1 when there is none.
	Device int
	// Shapes holds one entry per observed input when the session requests
	// input shapes; non-tensor inputs contribute an empty entry.
	Shapes [][]int64
}

// record stamps the event, pulling a device handle when asked.
func (e *Event) record(b devtime.Backend, withDevice bool) {
	if withDevice {
		e.Handle, e.Device, e.CPUTime = b.Record()
		return
	}
	e.Device = -1
	e.CPUTime = time.Now()
}

// HasDevice reports whether the event carries a device timing handle.
func (e *Event) HasDevice() bool {
	return e.Handle != nil
}

// CPUElapsedUS returns the microseconds between two events' CPU clocks.
func CPUElapsedUS(from, to *Event) float64 {
	return float64(to.CPUTime.Sub(from.CPUTime)) / float64(time.Microsecond)
}

// DeviceElapsedUS returns the microseconds between two events' device
// handles. Both events must carry handles from the same device; a mismatch
// is a correctness error, never a silent wrong number.
func DeviceElapsedUS(b devtime.Backend, from, to *Event) (float64, error) {
	if !from.HasDevice() || !to.HasDevice() {
		return 0, ErrNoDeviceTiming
	}
	if from.Device != to.Device {
		return 0, devtime.ErrDeviceMismatch
	}
	return b.Elapsed(from.Handle, to.Handle)
}
