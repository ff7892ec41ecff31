package profiler

import (
	"fmt"
	"strings"
)

// State selects how (and whether) a session records.
type State uint8

const (
	// Disabled records nothing.
	Disabled State = iota
	// CPU buffers events with CPU timestamps only.
	CPU
	// CUDA buffers events and requests device timing handles for them.
	CUDA
	// NVTX forwards ranges straight to the device tracing tool; nothing is
	// buffered internally.
	NVTX
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Disabled:
		return "off"
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	case NVTX:
		return "nvtx"
	default:
		return "unknown"
	}
}

// ParseState converts a string to a State.
func ParseState(s string) (State, error) {
	switch strings.ToLower(s) {
	case "off", "disabled":
		return Disabled, nil
	case "cpu":
		return CPU, nil
	case "cuda":
		return CUDA, nil
	case "nvtx":
		return NVTX, nil
	default:
		return Disabled, fmt.Errorf("invalid profiler mode: %q (expected: off|cpu|cuda|nvtx)", s)
	}
}

// DefaultWarmupEvents is how many throwaway device marks a CUDA session
// emits per device before the start mark. Device event recording has
// first-call overhead; the count absorbs it. Tunable, not an invariant.
const DefaultWarmupEvents = 5

// Config is the immutable configuration of one profiling session.
type Config struct {
	// State selects the recording mode.
	State State
	// ReportInputShapes attaches observed input shapes to range events.
	ReportInputShapes bool
	// WarmupEvents overrides DefaultWarmupEvents when positive; negative
	// disables warmup entirely.
	WarmupEvents int
}

func (c Config) warmup() int {
	switch {
	case c.WarmupEvents > 0:
		return c.WarmupEvents
	case c.WarmupEvents < 0:
		return 0
	default:
		return DefaultWarmupEvents
	}
}
