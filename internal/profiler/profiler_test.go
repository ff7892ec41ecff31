package profiler

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"fathom/internal/ambient"
	"fathom/internal/devtime"
	"fathom/internal/hook"
	"fathom/internal/launch"
)

type testRig struct {
	p       *Profiler
	ambient *ambient.Registry
	hooks   *hook.Registry
	backend *devtime.SimBackend
}

func newTestRig(t *testing.T, devices int) *testRig {
	t.Helper()
	amb := ambient.NewRegistry()
	hooks := hook.NewRegistry()
	var backend *devtime.SimBackend
	var b devtime.Backend = devtime.Nop
	if devices > 0 {
		backend = devtime.NewSimBackend(devices)
		b = backend
	}
	p, err := New(amb, hooks, b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testRig{p: p, ambient: amb, hooks: hooks, backend: backend}
}

func countKind(tr Trace, kind EventKind) int {
	n := 0
	for _, th := range tr.Threads {
		for _, ev := range th.Events {
			if ev.Kind == kind {
				n++
			}
		}
	}
	return n
}

func rangeNames(tr Trace) []string {
	var names []string
	for _, th := range tr.Threads {
		for _, ev := range th.Events {
			if ev.Kind == PushRange {
				names = append(names, ev.Name)
			}
		}
	}
	return names
}

func TestEnableDisableWithoutScopes(t *testing.T) {
	rig := newTestRig(t, 0)
	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !rig.p.Enabled() {
		t.Fatalf("Enabled = false during session")
	}

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if rig.p.Enabled() {
		t.Fatalf("Enabled = true after disable")
	}
	if got := countKind(tr, PushRange); got != 0 {
		t.Fatalf("empty session recorded %d ranges", got)
	}
	if got := countKind(tr, Mark); got != 2 {
		t.Fatalf("empty session recorded %d marks, want start and stop", got)
	}
	if rig.hooks.Active() {
		t.Fatalf("callbacks still installed after last disable")
	}
}

func TestDisableWithoutEnable(t *testing.T) {
	rig := newTestRig(t, 0)
	_, err := rig.p.Disable()
	if !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("Disable error = %v, want ErrNotEnabled", err)
	}
}

func TestWellNestedScopesRecordInOrder(t *testing.T) {
	rig := newTestRig(t, 0)
	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	outer := rig.hooks.Begin(hook.KindUserRange, "A")
	inner := rig.hooks.Begin(hook.KindUserRange, "B")
	inner.End()
	outer.End()

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}

	if len(tr.Threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(tr.Threads))
	}
	var kinds []EventKind
	var names []string
	for _, ev := range tr.Threads[0].Events {
		if ev.Kind == Mark {
			continue
		}
		kinds = append(kinds, ev.Kind)
		names = append(names, ev.Name)
	}
	wantKinds := []EventKind{PushRange, PushRange, PopRange, PopRange}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("kinds = %v, want %v", kinds, wantKinds)
	}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] {
			t.Fatalf("kinds = %v, want %v", kinds, wantKinds)
		}
	}
	if names[0] != "A" || names[1] != "B" {
		t.Fatalf("push names = %v, want [A B ...]", names[:2])
	}

	// Timestamps are monotonically non-decreasing within the thread.
	evs := tr.Threads[0].Events
	for i := 1; i < len(evs); i++ {
		if evs[i].CPUTime.Before(evs[i-1].CPUTime) {
			t.Fatalf("event %d recorded before event %d", i, i-1)
		}
	}
}

func TestNestedSessionsIsolate(t *testing.T) {
	rig := newTestRig(t, 0)
	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable outer: %v", err)
	}
	rig.hooks.Begin(hook.KindUserRange, "outer-scope").End()

	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable inner: %v", err)
	}
	rig.hooks.Begin(hook.KindUserRange, "inner-scope").End()

	innerTrace, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable inner: %v", err)
	}
	if names := rangeNames(innerTrace); len(names) != 1 || names[0] != "inner-scope" {
		t.Fatalf("inner trace ranges = %v, want [inner-scope]", names)
	}

	// The outer session is visible again and keeps recording.
	rig.hooks.Begin(hook.KindUserRange, "outer-again").End()

	outerTrace, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable outer: %v", err)
	}
	names := rangeNames(outerTrace)
	if len(names) != 2 || names[0] != "outer-scope" || names[1] != "outer-again" {
		t.Fatalf("outer trace ranges = %v, want [outer-scope outer-again]", names)
	}
}

func TestSpawnedTaskRecordsIntoSession(t *testing.T) {
	rig := newTestRig(t, 0)
	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	launch.GoWith(rig.ambient, func() {
		defer wg.Done()
		rig.hooks.Begin(hook.KindOperator, "spawned-op").End()
	})
	wg.Wait()

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}
	names := rangeNames(tr)
	if len(names) != 1 || names[0] != "spawned-op" {
		t.Fatalf("ranges = %v, want [spawned-op]", names)
	}

	// The scope was recorded on a different goroutine than the marks.
	main := ambient.GoroutineID()
	found := false
	for _, th := range tr.Threads {
		for _, ev := range th.Events {
			if ev.Kind == PushRange {
				if th.GID == main {
					t.Fatalf("spawned scope recorded on the enabling goroutine")
				}
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("spawned scope missing from trace")
	}
}

func TestDisableFromSpawnedTask(t *testing.T) {
	rig := newTestRig(t, 0)
	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	rig.hooks.Begin(hook.KindUserRange, "before-handoff").End()

	var wg sync.WaitGroup
	wg.Add(1)
	var tr Trace
	var disableErr error
	launch.GoWith(rig.ambient, func() {
		defer wg.Done()
		tr, disableErr = rig.p.Disable()
	})
	wg.Wait()

	if disableErr != nil {
		t.Fatalf("Disable from task: %v", disableErr)
	}
	if names := rangeNames(tr); len(names) != 1 || names[0] != "before-handoff" {
		t.Fatalf("ranges = %v, want [before-handoff]", names)
	}

	// The enabling goroutine still holds its own view of the popped
	// session; clean it up.
	if _, err := rig.ambient.Pop(ambient.SlotProfiler); err != nil {
		t.Fatalf("cleanup pop: %v", err)
	}
}

func TestInputShapesReporting(t *testing.T) {
	rig := newTestRig(t, 0)
	if err := rig.p.Enable(Config{State: CPU, ReportInputShapes: true}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	rig.hooks.Begin(hook.KindOperator, "matmul",
		hook.TensorInput(4, 8),
		hook.OpaqueInput(),
		hook.TensorInput(),
	).End()

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}

	var push *Event
	for _, th := range tr.Threads {
		for i := range th.Events {
			if th.Events[i].Kind == PushRange {
				push = &th.Events[i]
			}
		}
	}
	if push == nil {
		t.Fatalf("no push event recorded")
	}
	if len(push.Shapes) != 3 {
		t.Fatalf("shapes = %v, want 3 entries", push.Shapes)
	}
	if len(push.Shapes[0]) != 2 || push.Shapes[0][0] != 4 || push.Shapes[0][1] != 8 {
		t.Fatalf("tensor shape = %v, want [4 8]", push.Shapes[0])
	}
	if len(push.Shapes[1]) != 0 || len(push.Shapes[2]) != 0 {
		t.Fatalf("non-tensor shapes = %v, want empty entries", push.Shapes[1:])
	}
}

func TestInputShapesOffByDefault(t *testing.T) {
	rig := newTestRig(t, 0)
	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	rig.hooks.Begin(hook.KindOperator, "matmul", hook.TensorInput(4, 8)).End()

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}
	for _, th := range tr.Threads {
		for _, ev := range th.Events {
			if ev.Shapes != nil {
				t.Fatalf("event %q carries shapes without ReportInputShapes", ev.Name)
			}
		}
	}
}

func TestNVTXRequiresBackend(t *testing.T) {
	rig := newTestRig(t, 0)
	err := rig.p.Enable(Config{State: NVTX})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Enable error = %v, want ErrBackendUnavailable", err)
	}
	if rig.p.Enabled() {
		t.Fatalf("failed enable left a session behind")
	}
	if rig.hooks.Active() {
		t.Fatalf("failed enable installed callbacks")
	}
}

func TestNVTXForwardsWithoutBuffering(t *testing.T) {
	rig := newTestRig(t, 1)
	if err := rig.p.Enable(Config{State: NVTX}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	region := rig.hooks.Begin(hook.KindUserRange, "gpu-block")
	if open := rig.backend.OpenRanges(); len(open) != 1 || open[0] != "gpu-block" {
		t.Fatalf("open device ranges = %v, want [gpu-block]", open)
	}
	region.End()
	if open := rig.backend.OpenRanges(); len(open) != 0 {
		t.Fatalf("device ranges not closed: %v", open)
	}

	marks := rig.backend.Marks()
	if len(marks) != 1 || marks[0] != "__start_profile" {
		t.Fatalf("device marks = %v, want start marker only", marks)
	}

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if !tr.Empty() {
		t.Fatalf("NVTX session buffered %d events", tr.EventCount())
	}
}

func TestNVTXSequenceMessage(t *testing.T) {
	rig := newTestRig(t, 1)
	if err := rig.p.Enable(Config{State: NVTX, ReportInputShapes: true}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	region := rig.hooks.Begin(hook.KindOperator, "matmul",
		hook.TensorInput(2, 3), hook.OpaqueInput())
	open := rig.backend.OpenRanges()
	region.End()

	if len(open) != 1 {
		t.Fatalf("open device ranges = %v, want one", open)
	}
	// The sequence number is a process-wide counter, so match around it.
	if !strings.HasPrefix(open[0], "matmul, seq = ") ||
		!strings.HasSuffix(open[0], ", sizes = [[2, 3], []]") {
		t.Fatalf("device range message = %q", open[0])
	}

	if _, err := rig.p.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
}

func TestCUDAWarmupMarks(t *testing.T) {
	const devices = 2
	rig := newTestRig(t, devices)
	cfg := Config{State: CUDA, WarmupEvents: 3}
	if err := rig.p.Enable(cfg); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}

	counts := map[string]int{}
	for _, th := range tr.Threads {
		for _, ev := range th.Events {
			if ev.Kind == Mark {
				counts[ev.Name]++
			}
		}
	}
	if got := counts["__cuda_startup"]; got != 3*devices {
		t.Fatalf("warmup marks = %d, want %d", got, 3*devices)
	}
	if got := counts["__cuda_start_event"]; got != devices {
		t.Fatalf("device start marks = %d, want %d", got, devices)
	}
	if counts["__start_profile"] != 1 || counts["__stop_profile"] != 1 {
		t.Fatalf("session boundary marks = %v", counts)
	}
	if got := rig.backend.Syncs(); got != 3*devices {
		t.Fatalf("synchronize calls = %d, want %d", got, 3*devices)
	}
}

func TestCUDAEventsCarryDeviceHandles(t *testing.T) {
	rig := newTestRig(t, 1)
	if err := rig.p.Enable(Config{State: CUDA, WarmupEvents: -1}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	rig.hooks.Begin(hook.KindOperator, "kernel").End()

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}
	for _, th := range tr.Threads {
		for _, ev := range th.Events {
			switch {
			case ev.Kind == Mark && ev.Name == StartMarkName:
				if ev.HasDevice() {
					t.Fatalf("start mark carries a device handle")
				}
			case ev.Kind == PushRange || ev.Kind == PopRange:
				if !ev.HasDevice() {
					t.Fatalf("%s event missing device handle in CUDA mode", ev.Kind)
				}
			}
		}
	}
}

func TestMarkRecordsNamedEvent(t *testing.T) {
	rig := newTestRig(t, 0)
	rig.p.Mark("ignored-while-off", false)

	if err := rig.p.Enable(Config{State: CPU}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	rig.p.Mark("checkpoint", false)

	tr, err := rig.p.Disable()
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}
	found := false
	for _, th := range tr.Threads {
		for _, ev := range th.Events {
			if ev.Kind == Mark && ev.Name == "checkpoint" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("checkpoint mark missing from trace")
	}
}

func TestDeviceElapsedErrors(t *testing.T) {
	b := devtime.NewSimBackend(2)

	var e1, e2 Event
	b.SetDevice(0)
	e1.record(b, true)
	b.SetDevice(1)
	e2.record(b, true)

	if _, err := DeviceElapsedUS(b, &e1, &e2); !errors.Is(err, devtime.ErrDeviceMismatch) {
		t.Fatalf("cross-device elapsed error = %v, want ErrDeviceMismatch", err)
	}

	var cpuOnly Event
	cpuOnly.record(b, false)
	if _, err := DeviceElapsedUS(b, &e1, &cpuOnly); !errors.Is(err, ErrNoDeviceTiming) {
		t.Fatalf("mixed elapsed error = %v, want ErrNoDeviceTiming", err)
	}
}
