package fluent

import "context"

// Pulses is the edge-triggered view of a fluent: a lazy, infinite,
// non-restartable stream of its transitions. Each call to Next observes at
// most one transition; bursts of writes between two calls are coalesced
// into one observation of the latest value.
//
// A Pulses view is owned by a single consumer. Create one per wait
// expression; it is cheap and carries only the last observed version.
type Pulses[T any] struct {
	f    *Fluent[T]
	seen uint64
}

// Pulses returns an edge view positioned at the fluent's current version:
// only transitions that happen after this call are observed.
func (f *Fluent[T]) Pulses() *Pulses[T] {
	return &Pulses[T]{f: f, seen: f.Version()}
}

// Next blocks until the fluent's version exceeds the last version this view
// observed, advances the view and returns the current value. It returns
// ctx.Err if the wait is cancelled first.
func (p *Pulses[T]) Next(ctx context.Context) (T, error) {
	p.f.mu.Lock()
	for {
		if p.f.version > p.seen {
			p.seen = p.f.version
			v := p.f.value
			p.f.mu.Unlock()
			return v, nil
		}
		ch := p.f.changed
		p.f.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-ch:
		}
		p.f.mu.Lock()
	}
}

// NextMatching blocks until a transition publishes a value for which pred
// holds and returns it. Transitions whose values do not satisfy pred are
// consumed and discarded.
func (p *Pulses[T]) NextMatching(ctx context.Context, pred func(T) bool) (T, error) {
	for {
		v, err := p.Next(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if pred(v) {
			return v, nil
		}
	}
}
