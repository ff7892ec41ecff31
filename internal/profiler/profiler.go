// Package profiler is the execution-tracing core of the Fathom runtime.
//
// Enabling a session pushes its state into the ambient PROFILER slot and,
// on the first session of a goroutine lineage, installs the instrumentation
// callback pair that every instrumented scope boundary invokes. Recording
// routes to whichever session is visible in the slot, so nested sessions
// shadow outer ones and work spawned while a session is active records into
// it from any goroutine. Disabling pops the slot and, when the last lineage
// drains, uninstalls the callbacks so inactive tracing costs one atomic
// load per boundary.
package profiler

import (
	"errors"
	"fmt"
	"sync"

	"fathom/internal/ambient"
	"fathom/internal/devtime"
	"fathom/internal/hook"
)

// callbackTag identifies the profiler's pair in the hook registry.
const callbackTag = "profiler"

// lineageSetting is the ambient setting replicating "a session is active on
// this call path" onto spawned tasks.
const lineageSetting = "profiler"

var (
	// ErrBackendUnavailable rejects NVTX sessions when no device timing
	// backend is registered.
	ErrBackendUnavailable = errors.New("profiler: nvtx mode requires a device timing backend")
	// ErrNotEnabled rejects Disable when no session is active on the
	// calling goroutine's view.
	ErrNotEnabled = errors.New("profiler: no active session")
)

// Profiler owns the process-wide profiling lifecycle: which sessions are
// active, how deep the nesting is per goroutine lineage, and whether the
// instrumentation callbacks are installed. Tests construct isolated
// instances; the runtime shares the package-level default.
type Profiler struct {
	ambient *ambient.Registry
	hooks   *hook.Registry
	backend devtime.Backend // nil means devtime.Active() per use

	mu       sync.Mutex
	depth    map[uint64]int // per-goroutine lineage nesting depth
	installs int            // lineages currently holding the callbacks
}

// New constructs a profiler bound to the given registries. A nil backend
// defers to the process-wide devtime registration at each use, which is
// what production wants; tests pass a SimBackend. The profiler registers
// its lineage setting with the ambient registry so spawned tasks keep
// recording.
func New(amb *ambient.Registry, hooks *hook.Registry, backend devtime.Backend) (*Profiler, error) {
	p := &Profiler{
		ambient: amb,
		hooks:   hooks,
		backend: backend,
		depth:   make(map[uint64]int),
	}
	if err := amb.RegisterSetting(lineageSetting, p.lineageActive, p.applyLineage); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profiler) deviceBackend() devtime.Backend {
	if p.backend != nil {
		return p.backend
	}
	return devtime.Active()
}

// currentSession returns the session visible to the calling goroutine, or
// nil. Only sessions are ever pushed into SlotProfiler.
func (p *Profiler) currentSession() *session {
	s, _ := p.ambient.Get(ambient.SlotProfiler).(*session)
	return s
}

// Enable starts a new profiling session with cfg. Sessions nest: enabling
// while another session is active shadows it until the matching Disable.
func (p *Profiler) Enable(cfg Config) error {
	b := p.deviceBackend()
	if cfg.State == NVTX && !b.Available() {
		return fmt.Errorf("%w (state %s)", ErrBackendUnavailable, cfg.State)
	}

	s := newSession(cfg, b)
	p.ambient.Push(ambient.SlotProfiler, s)

	gid := ambient.GoroutineID()
	p.mu.Lock()
	if p.depth[gid] == 0 {
		p.installLocked(cfg.ReportInputShapes)
	}
	p.depth[gid]++
	p.mu.Unlock()

	if cfg.State == CUDA {
		for i := 0; i < cfg.warmup(); i++ {
			b.ForEachDevice(func(int) {
				s.mark(WarmupMarkName, true)
				b.Synchronize()
			})
		}
		// Device handles only compare within one device, so every device
		// gets its own start event to anchor device time against the CPU
		// clock.
		b.ForEachDevice(func(int) {
			s.mark(DeviceMarkName, true)
		})
	}
	s.mark(StartMarkName, false)
	return nil
}

// Disable ends the innermost session visible to the calling goroutine and
// returns its consolidated trace. NVTX sessions buffered nothing and return
// an empty trace. Disabling with no session active is a usage error and
// mutates nothing.
func (p *Profiler) Disable() (Trace, error) {
	v, err := p.ambient.Pop(ambient.SlotProfiler)
	if err != nil {
		return Trace{}, fmt.Errorf("%w: %v", ErrNotEnabled, err)
	}
	s, ok := v.(*session)
	if !ok {
		p.ambient.Push(ambient.SlotProfiler, v)
		return Trace{}, fmt.Errorf("%w: slot holds foreign value", ErrNotEnabled)
	}

	gid := ambient.GoroutineID()
	p.mu.Lock()
	if p.depth[gid] > 0 {
		p.depth[gid]--
		if p.depth[gid] == 0 {
			delete(p.depth, gid)
			p.uninstallLocked()
		}
	}
	p.mu.Unlock()

	if s.cfg.State == NVTX {
		return Trace{}, nil
	}
	s.mark(StopMarkName, true)
	return s.consolidate(), nil
}

// Enabled reports whether a recording session is visible to the calling
// goroutine.
func (p *Profiler) Enabled() bool {
	s := p.currentSession()
	return s != nil && s.cfg.State != Disabled
}

// Mark records a named point-in-time event into the current session, if
// any. Device timing is requested when includeDevice is set and the
// session's mode records device handles.
func (p *Profiler) Mark(name string, includeDevice bool) {
	if s := p.currentSession(); s != nil {
		s.mark(name, includeDevice)
	}
}

// installLocked hands the callback pair to the hook registry. installs
// counts goroutine lineages holding them; only the first actually
// installs. Callers hold p.mu.
func (p *Profiler) installLocked(needsInputs bool) {
	p.installs++
	if p.installs > 1 {
		return
	}
	cb := hook.Callback{
		OnEnter:     p.onScopeEnter(needsInputs),
		OnExit:      p.onScopeExit,
		NeedsInputs: needsInputs,
		Kinds: []hook.ScopeKind{
			hook.KindOperator,
			hook.KindUserRange,
			hook.KindScriptFunction,
		},
	}
	// Install only fails on a duplicate tag, which installs==1 rules out.
	if err := p.hooks.Install(callbackTag, cb); err != nil {
		p.installs--
	}
}

// uninstallLocked releases one lineage's hold; the last one removes the
// pair. Callers hold p.mu.
func (p *Profiler) uninstallLocked() {
	if p.installs == 0 {
		return
	}
	p.installs--
	if p.installs == 0 {
		_ = p.hooks.Uninstall(callbackTag)
	}
}

// onScopeEnter builds the enter callback. It resolves the current session
// at each invocation so nested sessions and propagated slots route
// correctly.
func (p *Profiler) onScopeEnter(needsInputs bool) func(*hook.Scope) bool {
	return func(sc *hook.Scope) bool {
		s := p.currentSession()
		if s == nil || s.cfg.State == Disabled {
			return true
		}
		msg := ""
		if sc.Seq >= 0 {
			msg = ", seq = "
		}
		var shapes [][]int64
		if needsInputs {
			shapes = inputShapes(sc.Inputs)
		}
		s.pushRange(sc.Name, msg, sc.Seq, shapes)
		return true
	}
}

func (p *Profiler) onScopeExit(*hook.Scope) {
	s := p.currentSession()
	if s == nil || s.cfg.State == Disabled {
		return
	}
	s.popRange()
}

// inputShapes extracts one shape per observed input; non-tensor inputs
// yield an empty entry so positions stay aligned.
func inputShapes(inputs []hook.Input) [][]int64 {
	shapes := make([][]int64, 0, len(inputs))
	for _, in := range inputs {
		shape := in.Shape()
		if shape == nil {
			shape = []int64{}
		}
		shapes = append(shapes, shape)
	}
	return shapes
}

// lineageActive is the propagation getter: non-zero when any session is in
// effect on the calling goroutine's lineage.
func (p *Profiler) lineageActive() int64 {
	gid := ambient.GoroutineID()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.depth[gid] > 0 {
		return 1
	}
	return 0
}

// applyLineage is the propagation setter. A spawned task whose parent was
// profiling takes a depth reference (installing the callbacks when it is
// the first lineage); the guard's unwind hands it back.
func (p *Profiler) applyLineage(v int64) {
	gid := ambient.GoroutineID()
	p.mu.Lock()
	defer p.mu.Unlock()

	if v != 0 {
		if p.depth[gid] == 0 {
			p.installLocked(false)
		}
		p.depth[gid]++
		return
	}
	if p.depth[gid] > 0 {
		p.depth[gid]--
		if p.depth[gid] == 0 {
			delete(p.depth, gid)
			p.uninstallLocked()
		}
	}
}
