package profiler

import (
	"fathom/internal/ambient"
	"fathom/internal/hook"
)

// std is the profiler the runtime shares, bound to the default registries
// and whatever device backend the process registers.
var std = func() *Profiler {
	p, err := New(ambient.Default, hook.Default, nil)
	if err != nil {
		// Only a duplicate setting name can fail here, and the default
		// registry is fresh at package init.
		panic(err)
	}
	return p
}()

// Default returns the shared profiler.
func Default() *Profiler { return std }

// Enable starts a session on the shared profiler.
func Enable(cfg Config) error { return std.Enable(cfg) }

// Disable ends the innermost session on the shared profiler.
func Disable() (Trace, error) { return std.Disable() }

// Enabled reports whether the shared profiler has a recording session
// visible to the calling goroutine.
func Enabled() bool { return std.Enabled() }

// MarkEvent records a named point event through the shared profiler.
func MarkEvent(name string, includeDevice bool) { std.Mark(name, includeDevice) }
