// Package hook is the instrumentation point of the Fathom runtime. Every
// instrumented scope boundary (operator dispatch, user-declared named range,
// script function call) funnels through Begin/End, which invoke whatever
// callback pairs are installed. With nothing installed the cost of a
// boundary is one atomic load and a branch.
package hook

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ScopeKind categorizes an instrumented scope.
type ScopeKind uint8

const (
	// KindOperator is a library-internal operator invocation.
	KindOperator ScopeKind = iota + 1
	// KindUserRange is a user-declared named range.
	KindUserRange
	// KindScriptFunction is an interpreted-script function call.
	KindScriptFunction
)

// String returns the string representation of ScopeKind.
func (k ScopeKind) String() string {
	switch k {
	case KindOperator:
		return "operator"
	case KindUserRange:
		return "user-range"
	case KindScriptFunction:
		return "script-function"
	default:
		return "unknown"
	}
}

// Input is one observed input of an instrumented scope. Tensor-like inputs
// carry their dimension list; anything else has no shape.
type Input struct {
	dims   []int64
	tensor bool
}

// TensorInput describes a tensor-like input with the given dimensions.
func TensorInput(dims ...int64) Input {
	return Input{dims: dims, tensor: true}
}

// OpaqueInput describes a non-tensor input (scalar, option, undefined value).
func OpaqueInput() Input {
	return Input{}
}

// Shape returns the input's dimension list, or nil when the input is not
// tensor-like or carries no dimensions.
func (in Input) Shape() []int64 {
	if !in.tensor {
		return nil
	}
	return in.dims
}

// Scope describes one instrumented scope to the installed callbacks. The
// same value is passed to the matching enter and exit invocations.
type Scope struct {
	Kind   ScopeKind
	Name   string
	Seq    int64 // monotone per-process for operator scopes, -1 otherwise
	Inputs []Input
}

// Callback is one installed (enter, exit) pair.
type Callback struct {
	// OnEnter runs at scope entry. Returning false suppresses every
	// later-registered callback for this scope, including their OnExit.
	OnEnter func(*Scope) bool
	// OnExit runs at the matching scope exit, in reverse registration order.
	OnExit func(*Scope)
	// NeedsInputs asks the runtime to collect scope inputs before Begin.
	NeedsInputs bool
	// Kinds restricts the callback to the listed scope kinds; empty means
	// every kind.
	Kinds []ScopeKind
}

func (cb Callback) applies(kind ScopeKind) bool {
	if len(cb.Kinds) == 0 {
		return true
	}
	for _, k := range cb.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

var (
	// ErrDuplicateTag is returned by Install for an already-used tag.
	ErrDuplicateTag = errors.New("hook: tag already installed")
	// ErrUnknownTag is returned by Uninstall for a tag never installed.
	ErrUnknownTag = errors.New("hook: tag not installed")
)

type entry struct {
	tag string
	cb  Callback
}

// Registry holds the installed callback pairs. Install and Uninstall are
// serialized; invocation reads a copy-on-write list through one atomic
// pointer so the disabled fast path takes no lock.
type Registry struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]entry]
}

// NewRegistry constructs an empty callback registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default is the registry the runtime dispatches through.
var Default = NewRegistry()

// Install adds a callback pair under tag. Installing an already-present tag
// fails rather than silently duplicating.
func (r *Registry) Install(tag string, cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	for _, e := range cur {
		if e.tag == tag {
			return fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
		}
	}
	next := make([]entry, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, entry{tag: tag, cb: cb})
	r.entries.Store(&next)
	return nil
}

// Uninstall removes the callback pair installed under tag.
func (r *Registry) Uninstall(tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	for i, e := range cur {
		if e.tag != tag {
			continue
		}
		next := make([]entry, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		r.entries.Store(&next)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

// Active reports whether any callback is installed. Dispatch sites check
// this before collecting inputs or formatting names.
func (r *Registry) Active() bool {
	return len(r.load()) > 0
}

// NeedsInputs reports whether any installed callback applicable to kind
// wants scope inputs collected.
func (r *Registry) NeedsInputs(kind ScopeKind) bool {
	for _, e := range r.load() {
		if e.cb.NeedsInputs && e.cb.applies(kind) {
			return true
		}
	}
	return false
}

func (r *Registry) load() []entry {
	if p := r.entries.Load(); p != nil {
		return *p
	}
	return nil
}
