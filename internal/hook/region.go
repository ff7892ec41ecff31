package hook

import "sync/atomic"

var opSeq atomic.Int64

// nextOpSeq returns a monotonically increasing operator sequence number.
func nextOpSeq() int64 {
	return opSeq.Add(1)
}

// Region tracks one entered scope until its End. A nil Region is valid and
// End on it is a no-op, so call sites need no branching.
type Region struct {
	scope Scope
	ran   []entry
}

// Begin notifies installed callbacks about a scope entry and returns the
// region to close at exit. It returns nil when no applicable callback is
// installed; that path performs no allocation beyond the caller's inputs.
func (r *Registry) Begin(kind ScopeKind, name string, inputs ...Input) *Region {
	entries := r.load()
	if len(entries) == 0 {
		return nil
	}

	applicable := entries[:0:0]
	for _, e := range entries {
		if e.cb.applies(kind) {
			applicable = append(applicable, e)
		}
	}
	if len(applicable) == 0 {
		return nil
	}

	seq := int64(-1)
	if kind == KindOperator {
		seq = nextOpSeq()
	}

	region := &Region{
		scope: Scope{Kind: kind, Name: name, Seq: seq, Inputs: inputs},
	}

	for _, e := range applicable {
		if e.cb.OnEnter != nil && !e.cb.OnEnter(&region.scope) {
			// Suppress later-registered callbacks for this scope.
			break
		}
		region.ran = append(region.ran, e)
	}
	return region
}

// End notifies the callbacks that observed the entry, in reverse order.
func (rg *Region) End() {
	if rg == nil {
		return
	}
	for i := len(rg.ran) - 1; i >= 0; i-- {
		if exit := rg.ran[i].cb.OnExit; exit != nil {
			exit(&rg.scope)
		}
	}
	rg.ran = nil
}

// Begin enters a scope against the default registry.
func Begin(kind ScopeKind, name string, inputs ...Input) *Region {
	return Default.Begin(kind, name, inputs...)
}

// Active reports whether the default registry has any callback installed.
func Active() bool { return Default.Active() }
