package fluent

import (
	"context"
	"sort"
	"sync"
)

// Fluent is a thread-safe reactive value cell. The zero value is not usable;
// create fluents with New.
type Fluent[T any] struct {
	name string

	mu      sync.Mutex
	value   T
	version uint64
	changed chan struct{}

	watchers    map[int]func(T)
	nextWatcher int
}

// New creates a fluent with the given diagnostic name and initial value.
// The initial value counts as version zero and does not wake anybody.
func New[T any](name string, initial T) *Fluent[T] {
	return &Fluent[T]{
		name:    name,
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Name returns the diagnostic name the fluent was created with.
func (f *Fluent[T]) Name() string {
	return f.name
}

// Value returns the current value. The read is consistent: it happens under
// the same lock writes take, so a caller never observes a half-updated
// value.
func (f *Fluent[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Version returns the current change counter. Each Set and Pulse increments
// it by one.
func (f *Fluent[T]) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// Set atomically replaces the value, bumps the version and wakes every
// waiter. Writes to one fluent are totally ordered. Watchers registered
// with Watch run on the calling goroutine after the value is published.
func (f *Fluent[T]) Set(v T) {
	f.mu.Lock()
	f.value = v
	watchers := f.publishLocked()
	f.mu.Unlock()
	for _, w := range watchers {
		w(v)
	}
}

// Update atomically applies fn to the current value, stores the result and
// wakes every waiter. It returns the stored value. Used where
// read-modify-write must not race, for example rebind counters.
func (f *Fluent[T]) Update(fn func(T) T) T {
	f.mu.Lock()
	v := fn(f.value)
	f.value = v
	watchers := f.publishLocked()
	f.mu.Unlock()
	for _, w := range watchers {
		w(v)
	}
	return v
}

// Pulse wakes every waiter without changing the value. A re-published pose
// that equals the previous one still counts as a world change, so waiters
// re-evaluate their predicates.
func (f *Fluent[T]) Pulse() {
	f.mu.Lock()
	v := f.value
	watchers := f.publishLocked()
	f.mu.Unlock()
	for _, w := range watchers {
		w(v)
	}
}

// publishLocked bumps the version, swaps the broadcast channel and returns
// the watchers to notify. Callers must hold f.mu.
func (f *Fluent[T]) publishLocked() []func(T) {
	f.version++
	close(f.changed)
	f.changed = make(chan struct{})
	if len(f.watchers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(f.watchers))
	for id := range f.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	watchers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		watchers = append(watchers, f.watchers[id])
	}
	return watchers
}

// WaitFor blocks until pred holds on the current value and returns that
// value. The predicate is re-evaluated on every write; a write that lands
// between the evaluation and the wait cannot be missed because the value
// and the broadcast channel are read under the same lock. If pred already
// holds, WaitFor returns immediately.
//
// The only error returned is ctx.Err when the wait is cancelled; the
// returned value is the zero value in that case. Blocking forever on a
// predicate that never becomes true is a valid use: the caller is woken by
// cancellation.
func (f *Fluent[T]) WaitFor(ctx context.Context, pred func(T) bool) (T, error) {
	f.mu.Lock()
	for {
		if pred(f.value) {
			v := f.value
			f.mu.Unlock()
			return v, nil
		}
		ch := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-ch:
		}
		f.mu.Lock()
	}
}

// Watch registers fn to run after every Set, Update or Pulse, on the
// writer's goroutine, with the published value. It returns a function that
// removes the watcher. Watchers must not write their own fluent.
func (f *Fluent[T]) Watch(fn func(T)) func() {
	f.mu.Lock()
	if f.watchers == nil {
		f.watchers = make(map[int]func(T))
	}
	id := f.nextWatcher
	f.nextWatcher++
	f.watchers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}
}
