package plan

import (
	"context"
	"errors"
)

// Decision is a handler's verdict on a matched failure.
type Decision int

const (
	// Propagate lets the failure continue upward unchanged. This is also
	// the verdict when no handler of the scope matches.
	Propagate Decision = iota

	// Retry resumes the handling block from its start, typically after the
	// handler rebound a designator to its next alternative.
	Retry

	// Return unwinds out of the handling block without resuming; the
	// failure is swallowed and the block reports success.
	Return
)

// Handler handles failures of certain kinds within one Handling scope.
type Handler struct {
	// Kinds lists the failure kinds this handler matches. An empty list
	// matches every kind.
	Kinds []FailureKind

	// Handle decides what to do with a matched failure.
	Handle func(f *Failure) Decision
}

func (h Handler) matches(kind FailureKind) bool {
	if len(h.Kinds) == 0 {
		return true
	}
	for _, k := range h.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// On builds a handler for a single failure kind.
func On(kind FailureKind, handle func(f *Failure) Decision) Handler {
	return Handler{Kinds: []FailureKind{kind}, Handle: handle}
}

// OnAny builds a handler matching every failure kind.
func OnAny(handle func(f *Failure) Decision) Handler {
	return Handler{Handle: handle}
}

// Handling runs body under a lexical failure-handler scope. When body
// returns a classified failure, the first handler whose kinds match
// decides: Retry re-runs body from its start, Return unwinds with success,
// Propagate passes the failure upward unchanged. Unmatched kinds and
// non-failure errors (cancellation in particular) propagate without
// consulting any handler. Nested Handling scopes form the handler stack;
// the innermost matching scope wins simply because it runs first.
//
// A cancelled context never retries: the context error is returned even if
// a handler asked for Retry.
func Handling(ctx context.Context, body Step, handlers ...Handler) error {
	for {
		err := body(ctx)
		if err == nil {
			return nil
		}

		var f *Failure
		if !errors.As(err, &f) {
			return err
		}

		decision := Propagate
		for _, h := range handlers {
			if h.matches(f.Kind) {
				decision = h.Handle(f)
				break
			}
		}

		switch decision {
		case Retry:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
		case Return:
			return nil
		default:
			return err
		}
	}
}

// Counter is a named, bounded retry counter scoped to one handling block:
// created at block entry, discarded at block exit, mutated only by DoRetry.
// It is not shared across goroutines.
type Counter struct {
	name  string
	count int
}

// NewCounter creates a retry counter with a diagnostic name.
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

// Name returns the counter's diagnostic name.
func (c *Counter) Name() string {
	return c.name
}

// Count returns how many retries the counter has recorded.
func (c *Counter) Count() int {
	return c.count
}

// DoRetry is the bounded-retry policy. Below the limit it increments the
// counter, runs prepare (typically stepping a designator to its next
// alternative) and decides Retry. At or beyond the limit it is a strict
// no-op and decides Propagate: the original failure continues upward
// unchanged, not wrapped and not replaced.
func DoRetry(c *Counter, limit int, prepare func()) Decision {
	if c.count >= limit {
		return Propagate
	}
	c.count++
	if prepare != nil {
		prepare()
	}
	return Retry
}
