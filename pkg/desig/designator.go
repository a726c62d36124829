package desig

import (
	"context"
	"sync"

	"github.com/openrove/openrove/pkg/fluent"
	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/world"
)

// Resolver produces candidate solutions for designator properties, best
// candidate first. Resolvers may block (perception-backed resolvers do)
// and classify their failures as plan failures.
type Resolver[T any] interface {
	// Candidates returns the candidate solutions for props. An empty
	// slice means the designator cannot be resolved.
	Candidates(ctx context.Context, props map[string]interface{}) ([]T, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc[T any] func(ctx context.Context, props map[string]interface{}) ([]T, error)

// Candidates implements Resolver.
func (f ResolverFunc[T]) Candidates(ctx context.Context, props map[string]interface{}) ([]T, error) {
	return f(ctx, props)
}

// NewStatic returns a resolver serving a fixed candidate list.
func NewStatic[T any](candidates ...T) Resolver[T] {
	return ResolverFunc[T](func(context.Context, map[string]interface{}) ([]T, error) {
		out := make([]T, len(candidates))
		copy(out, candidates)
		return out, nil
	})
}

// Designator is a named, lazily-resolved goal parameter. It is unresolved
// until the first Resolve, bound to one of its resolver's candidates after,
// and invalidated again by Equate. Designators are safe for concurrent use
// by the branches of a goal invocation.
type Designator[T any] struct {
	name     string
	resolver Resolver[T]

	mu         sync.Mutex
	props      map[string]interface{}
	candidates []T
	fetched    bool
	index      int

	rebinds *fluent.Fluent[int]
}

// Location designates a pose in the world frame.
type Location = Designator[world.Pose]

// Object designates a physical object.
type Object = Designator[world.Object]

// ActionSpec designates a manipulation action.
type ActionSpec = Designator[world.Action]

// New creates a designator with the given diagnostic name, properties and
// resolver.
func New[T any](name string, props map[string]interface{}, resolver Resolver[T]) *Designator[T] {
	return &Designator[T]{
		name:     name,
		resolver: resolver,
		props:    copyProps(props),
		index:    -1,
		rebinds:  fluent.New(name+"-rebinds", 0),
	}
}

// NewLocation creates a location designator.
func NewLocation(name string, props map[string]interface{}, resolver Resolver[world.Pose]) *Location {
	return New(name, props, resolver)
}

// NewObject creates an object designator.
func NewObject(name string, props map[string]interface{}, resolver Resolver[world.Object]) *Object {
	return New(name, props, resolver)
}

// NewActionSpec creates an action designator.
func NewActionSpec(name string, props map[string]interface{}, resolver Resolver[world.Action]) *ActionSpec {
	return New(name, props, resolver)
}

// Name returns the designator's diagnostic name.
func (d *Designator[T]) Name() string {
	return d.name
}

// Props returns a copy of the designator's properties.
func (d *Designator[T]) Props() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyProps(d.props)
}

// Resolve binds the designator to its first candidate solution and returns
// it; an already-resolved designator returns its current solution. It
// fails with a designator-unresolvable failure when the resolver yields no
// candidates.
func (d *Designator[T]) Resolve(ctx context.Context) (T, error) {
	var zero T

	d.mu.Lock()
	if d.index >= 0 {
		v := d.candidates[d.index]
		d.mu.Unlock()
		return v, nil
	}
	fetched := d.fetched
	d.mu.Unlock()

	// Fetch outside the lock: perception-backed resolvers block, and
	// Current must stay responsive for fluent recomputation meanwhile.
	if !fetched {
		candidates, err := d.resolver.Candidates(ctx, d.Props())
		if err != nil {
			return zero, err
		}
		d.mu.Lock()
		if !d.fetched {
			d.candidates = candidates
			d.fetched = true
		}
		d.mu.Unlock()
	}

	d.mu.Lock()
	if d.index < 0 {
		if len(d.candidates) == 0 {
			d.mu.Unlock()
			return zero, plan.NewDesignatorUnresolvable(d.name)
		}
		d.index = 0
	}
	v := d.candidates[d.index]
	d.mu.Unlock()

	d.rebinds.Update(func(n int) int { return n + 1 })
	return v, nil
}

// NextSolution steps the designator to a different candidate and returns
// it; on an unresolved designator it behaves like Resolve. Exhausting the
// candidates fails with a designator-unresolvable failure and leaves the
// current binding in place.
func (d *Designator[T]) NextSolution(ctx context.Context) (T, error) {
	var zero T

	d.mu.Lock()
	resolved := d.index >= 0
	d.mu.Unlock()
	if !resolved {
		return d.Resolve(ctx)
	}

	d.mu.Lock()
	if d.index+1 >= len(d.candidates) {
		d.mu.Unlock()
		return zero, plan.NewDesignatorUnresolvable(d.name)
	}
	d.index++
	v := d.candidates[d.index]
	d.mu.Unlock()

	d.rebinds.Update(func(n int) int { return n + 1 })
	return v, nil
}

// Current returns the bound solution without resolving. The second return
// value is false while the designator is unresolved.
func (d *Designator[T]) Current() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index < 0 {
		var zero T
		return zero, false
	}
	return d.candidates[d.index], true
}

// Rebinds returns the designator's rebind fluent. Its value counts the
// bindings so far; every Resolve, NextSolution and Equate pulses it. Wait
// on it, watch it, or combine it into derived fluents.
func (d *Designator[T]) Rebinds() *fluent.Fluent[int] {
	return d.rebinds
}

// OnRebind registers fn to run on every rebind and returns a function that
// removes the registration.
func (d *Designator[T]) OnRebind(fn func()) func() {
	return d.rebinds.Watch(func(int) { fn() })
}

// Equate merges props into the designator's properties, invalidates the
// current solution and pulses the rebind fluent. The next Resolve fetches
// fresh candidates for the merged description.
func (d *Designator[T]) Equate(props map[string]interface{}) {
	d.mu.Lock()
	for k, v := range props {
		d.props[k] = v
	}
	d.candidates = nil
	d.fetched = false
	d.index = -1
	d.mu.Unlock()

	d.rebinds.Update(func(n int) int { return n + 1 })
}

func copyProps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
