// Package ambient provides the process-wide scoped context store that the
// Fathom runtime threads through every goroutine it runs work on.
//
// The store is a per-goroutine stack of slots. Each slot holds one kind of
// ambient payload (the active profiling session, auxiliary debug state).
// Pushing a value shadows whatever was visible before; popping restores it.
//
// # Propagation
//
// Goroutines do not inherit ambient state. A task-spawning primitive captures
// a Snapshot on the spawning goroutine and applies it on the new goroutine
// before any user code runs:
//
//	snap := ambient.Capture()
//	go func() {
//		guard := snap.Apply()
//		defer guard.Release()
//		// work spawned here sees the parent's ambient state
//	}()
//
// After capture the two sides are isolated: pushes and pops on either side
// are invisible to the other.
//
// # Settings
//
// Alongside slot values, subsystems may register named integer settings with
// getter/setter pairs. Capture reads every getter on the spawning goroutine;
// Apply replays the values through the setters on the spawned goroutine, and
// Release replays the goroutine's prior values on the way out. The profiler
// uses this to replicate "is a session active on this call path" across
// spawns without consulting the slot store.
package ambient
