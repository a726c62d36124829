package fluent

import "context"

// Map returns a fluent that holds fn of src's value and recomputes on every
// change of src. The second return value detaches the derived fluent from
// src; after release the derived fluent keeps its last value and no longer
// updates.
func Map[T, U any](name string, src *Fluent[T], fn func(T) U) (*Fluent[U], func()) {
	d := New(name, *new(U))
	remove := src.Watch(func(v T) {
		d.Set(fn(v))
	})
	d.Set(fn(src.Value()))
	return d, remove
}

// Combine2 returns a fluent combining two inputs through a pure function,
// recomputing whenever either input changes. Release semantics match Map.
func Combine2[A, B, U any](name string, a *Fluent[A], b *Fluent[B], fn func(A, B) U) (*Fluent[U], func()) {
	d := New(name, *new(U))
	recompute := func() {
		d.Set(fn(a.Value(), b.Value()))
	}
	removeA := a.Watch(func(A) { recompute() })
	removeB := b.Watch(func(B) { recompute() })
	recompute()
	return d, func() {
		removeA()
		removeB()
	}
}

// And returns a fluent that is true while every input is true.
func And(name string, inputs ...*Fluent[bool]) (*Fluent[bool], func()) {
	return combineBool(name, inputs, func(values []bool) bool {
		for _, v := range values {
			if !v {
				return false
			}
		}
		return true
	})
}

// Or returns a fluent that is true while at least one input is true.
func Or(name string, inputs ...*Fluent[bool]) (*Fluent[bool], func()) {
	return combineBool(name, inputs, func(values []bool) bool {
		for _, v := range values {
			if v {
				return true
			}
		}
		return false
	})
}

// Not returns a fluent holding the negation of src.
func Not(name string, src *Fluent[bool]) (*Fluent[bool], func()) {
	return Map(name, src, func(v bool) bool { return !v })
}

func combineBool(name string, inputs []*Fluent[bool], fold func([]bool) bool) (*Fluent[bool], func()) {
	d := New(name, false)
	recompute := func() {
		values := make([]bool, len(inputs))
		for i, in := range inputs {
			values[i] = in.Value()
		}
		d.Set(fold(values))
	}
	removes := make([]func(), len(inputs))
	for i, in := range inputs {
		removes[i] = in.Watch(func(bool) { recompute() })
	}
	recompute()
	return d, func() {
		for _, remove := range removes {
			remove()
		}
	}
}

// WaitTrue blocks until the boolean fluent becomes true. Convenience for
// the common goal-satisfaction wait.
func WaitTrue(ctx context.Context, f *Fluent[bool]) error {
	_, err := f.WaitFor(ctx, func(v bool) bool { return v })
	return err
}
