package goal

import (
	"context"
	"fmt"
	"sync"

	"github.com/openrove/openrove/pkg/fluent"
)

// Coordination classes. Every long-lived goal that owns a physical
// subsystem acquires the class lock for that subsystem.
const (
	// ClassNavigation serializes goals that own the robot base.
	ClassNavigation = "navigation"

	// ClassManipulation serializes goals that own the arm.
	ClassManipulation = "manipulation"
)

// LockState is the published protocol state of a class lock.
type LockState string

const (
	// LockIdle means nobody holds or waits for the lock.
	LockIdle LockState = "idle"

	// LockAcquiring means a branch is waiting for the lock.
	LockAcquiring LockState = "acquiring"

	// LockHeld means a branch owns the lock.
	LockHeld LockState = "held"

	// LockReleasing means the owner is giving the lock up.
	LockReleasing LockState = "releasing"
)

// ClassLock is the two-level coordination lock for one hardware class.
//
// The primary slot is held by the acting branch of a goal for the branch's
// whole lifetime, including the parked wait after its corrective action
// finished. It is released only when the owning race is cancelled, so a
// monitor that wins the race implicitly frees the class for the next goal.
//
// The motion lock is short-held. It serializes the actual hardware motion
// against assessment reads: whoever holds the primary may start a motion,
// and nobody may assess the class state while a motion is in flight.
// Assessing does not require the primary, so a monitor branch can take a
// consistent reading while its sibling still owns the class.
//
// Lock states are published through a fluent so monitors and tests can wait
// on transitions instead of polling.
type ClassLock struct {
	name   string
	slot   chan struct{}
	motion chan struct{}
	state  *fluent.Fluent[LockState]

	mu      sync.Mutex
	held    bool
	holder  string
	waiters int
}

// NewClassLock creates an idle lock for the named class.
func NewClassLock(name string) *ClassLock {
	return &ClassLock{
		name:   name,
		slot:   make(chan struct{}, 1),
		motion: make(chan struct{}, 1),
		state:  fluent.New("lock-"+name, LockIdle),
	}
}

// Name returns the class name.
func (l *ClassLock) Name() string {
	return l.name
}

// State returns the fluent publishing the lock's protocol state.
func (l *ClassLock) State() *fluent.Fluent[LockState] {
	return l.state
}

// Held reports whether the primary slot is currently owned.
func (l *ClassLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Holder returns the name of the current owner, or "" when idle.
func (l *ClassLock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

// Acquire takes the primary slot, blocking until it is free or ctx is
// cancelled. It returns a release function bound to this acquisition; the
// release function is idempotent, so deferring it alongside an explicit
// call is safe. A second acquirer blocks until the first release.
func (l *ClassLock) Acquire(ctx context.Context, holder string) (func(), error) {
	l.mu.Lock()
	l.waiters++
	if !l.held {
		l.state.Set(LockAcquiring)
	}
	l.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		l.mu.Lock()
		l.waiters--
		if !l.held && l.waiters == 0 {
			l.state.Set(LockIdle)
		}
		l.mu.Unlock()
		return nil, ctx.Err()
	}

	l.mu.Lock()
	l.waiters--
	l.held = true
	l.holder = holder
	l.state.Set(LockHeld)
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(l.release) }, nil
}

func (l *ClassLock) release() {
	l.mu.Lock()
	l.held = false
	l.holder = ""
	l.state.Set(LockReleasing)
	l.mu.Unlock()

	<-l.slot

	// A waiter that grabbed the slot already published Held; only fall
	// back to Idle when nobody took over and nobody is waiting.
	l.mu.Lock()
	if !l.held && l.waiters == 0 {
		l.state.Set(LockIdle)
	}
	l.mu.Unlock()
}

// Move runs fn while holding the motion lock. The caller must own the
// primary slot; motion by a branch that skipped acquisition is refused.
func (l *ClassLock) Move(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	held := l.held
	l.mu.Unlock()
	if !held {
		return fmt.Errorf("%s lock: motion without holding the class lock", l.name)
	}

	select {
	case l.motion <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.motion }()

	return fn()
}

// Assess runs fn while holding the motion lock, without requiring the
// primary slot. It blocks until any in-flight motion finishes, so fn sees
// a settled reading.
func (l *ClassLock) Assess(ctx context.Context, fn func()) error {
	select {
	case l.motion <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	fn()
	<-l.motion
	return nil
}

// LockSet owns the class locks of one executive. Locks are created lazily
// on first use so tests and callers never have to pre-register classes.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*ClassLock
}

// NewLockSet creates an empty lock set.
func NewLockSet() *LockSet {
	return &LockSet{
		locks: make(map[string]*ClassLock),
	}
}

// Class returns the lock for the named class, creating it if needed.
func (s *LockSet) Class(name string) *ClassLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[name]; ok {
		return l
	}
	l := NewClassLock(name)
	s.locks[name] = l
	return l
}

// Snapshot returns the current state of every known class lock.
func (s *LockSet) Snapshot() map[string]LockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make(map[string]LockState, len(s.locks))
	for name, l := range s.locks {
		states[name] = l.state.Value()
	}
	return states
}
