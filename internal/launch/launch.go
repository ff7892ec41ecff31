// Package launch is the task-spawning primitive of the Fathom runtime.
// Every spawn captures the spawning goroutine's ambient state and restores
// it on the new goroutine before user code runs, so work spawned while a
// profiling session is active keeps recording into it. Call sites that
// bypass launch get fresh, untraced goroutines.
package launch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"fathom/internal/ambient"
)

// Go runs fn on a new goroutine with the caller's ambient state.
func Go(fn func()) {
	GoWith(ambient.Default, fn)
}

// GoWith is Go against a specific registry; tests use isolated registries.
func GoWith(reg *ambient.Registry, fn func()) {
	snap := reg.Capture()
	go func() {
		guard := snap.Apply()
		defer guard.Release()
		fn()
	}()
}

// Group runs a set of tasks that share cancellation and error collection.
// Each Go call captures the ambient state at that call, so tasks see the
// state of their spawn point, not of Wait.
type Group struct {
	eg  *errgroup.Group
	reg *ambient.Registry
}

// WithContext builds a Group bound to ctx and the default registry.
func WithContext(ctx context.Context) (*Group, context.Context) {
	return WithContextIn(ambient.Default, ctx)
}

// WithContextIn builds a Group bound to ctx and an explicit registry.
func WithContextIn(reg *ambient.Registry, ctx context.Context) (*Group, context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{eg: eg, reg: reg}, ctx
}

// SetLimit bounds the number of concurrently running tasks.
func (g *Group) SetLimit(n int) {
	g.eg.SetLimit(n)
}

// Go schedules fn with the ambient state captured now.
func (g *Group) Go(fn func() error) {
	snap := g.reg.Capture()
	g.eg.Go(func() error {
		guard := snap.Apply()
		defer guard.Release()
		return fn()
	})
}

// Wait blocks until every task returns and yields the first error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
