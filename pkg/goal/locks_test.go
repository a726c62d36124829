package goal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLockLifecycle(t *testing.T) {
	lock := NewClassLock(ClassNavigation)

	if got := lock.State().Value(); got != LockIdle {
		t.Fatalf("Expected initial state %q, got %q", LockIdle, got)
	}
	if lock.Held() {
		t.Fatal("Expected a fresh lock to be free")
	}

	var mu sync.Mutex
	var transitions []LockState
	unsub := lock.State().Watch(func(s LockState) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	})
	defer unsub()

	release, err := lock.Acquire(context.Background(), "goal-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !lock.Held() {
		t.Fatal("Expected the lock held after Acquire")
	}
	if got := lock.Holder(); got != "goal-1" {
		t.Fatalf("Expected holder goal-1, got %q", got)
	}
	if got := lock.State().Value(); got != LockHeld {
		t.Fatalf("Expected state %q while held, got %q", LockHeld, got)
	}

	release()
	if lock.Held() {
		t.Fatal("Expected the lock free after release")
	}
	if got := lock.State().Value(); got != LockIdle {
		t.Fatalf("Expected state %q after release, got %q", LockIdle, got)
	}

	mu.Lock()
	got := append([]LockState(nil), transitions...)
	mu.Unlock()
	want := []LockState{LockAcquiring, LockHeld, LockReleasing, LockIdle}
	if len(got) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected transitions %v, got %v", want, got)
		}
	}
}

func TestLockMutualExclusion(t *testing.T) {
	lock := NewClassLock(ClassNavigation)

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				release, err := lock.Acquire(context.Background(), "worker")
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				release()
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("Expected at most one holder at a time, got %d", maxInside)
	}
	if lock.Held() {
		t.Fatal("Expected the lock free after all workers finished")
	}
	if got := lock.State().Value(); got != LockIdle {
		t.Fatalf("Expected final state %q, got %q", LockIdle, got)
	}
}

func TestLockHandoverNeverSkipsReleasing(t *testing.T) {
	lock := NewClassLock(ClassNavigation)

	var mu sync.Mutex
	var transitions []LockState
	unsub := lock.State().Watch(func(s LockState) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	})
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				release, err := lock.Acquire(context.Background(), "worker")
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				release()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	got := append([]LockState(nil), transitions...)
	mu.Unlock()

	for i := 1; i < len(got); i++ {
		if got[i] == LockHeld && got[i-1] == LockHeld {
			t.Fatalf("Expected a releasing transition between holds, got %v", got)
		}
	}
	for i, s := range got {
		if s != LockIdle {
			continue
		}
		if i == 0 || got[i-1] != LockReleasing {
			t.Fatalf("Expected idle only after releasing, got %v", got)
		}
	}
	if got[len(got)-1] != LockIdle {
		t.Fatalf("Expected the sequence to end idle, got %v", got)
	}
}

func TestLockAcquireCancelled(t *testing.T) {
	lock := NewClassLock(ClassManipulation)

	release, err := lock.Acquire(context.Background(), "first")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := lock.Acquire(ctx, "second"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected a deadline error from the blocked acquire, got %v", err)
	}

	// The published state must still reflect the surviving holder.
	if got := lock.State().Value(); got != LockHeld {
		t.Fatalf("Expected state %q while still held, got %q", LockHeld, got)
	}
	if got := lock.Holder(); got != "first" {
		t.Fatalf("Expected holder first, got %q", got)
	}

	release()
	if got := lock.State().Value(); got != LockIdle {
		t.Fatalf("Expected state %q after release, got %q", LockIdle, got)
	}
}

func TestLockReleaseIdempotent(t *testing.T) {
	lock := NewClassLock(ClassNavigation)

	release, err := lock.Acquire(context.Background(), "goal-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()
	release()

	release2, err := lock.Acquire(context.Background(), "goal-2")
	if err != nil {
		t.Fatalf("Expected the lock acquirable after a double release, got %v", err)
	}
	if got := lock.Holder(); got != "goal-2" {
		t.Fatalf("Expected holder goal-2, got %q", got)
	}
	release2()
}

func TestLockMoveRequiresHeld(t *testing.T) {
	lock := NewClassLock(ClassNavigation)

	err := lock.Move(context.Background(), func() error { return nil })
	if err == nil {
		t.Fatal("Expected Move without the class lock to fail")
	}
}

func TestLockMovePropagatesError(t *testing.T) {
	lock := NewClassLock(ClassNavigation)

	release, err := lock.Acquire(context.Background(), "goal-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	bump := errors.New("bumper pressed")
	if err := lock.Move(context.Background(), func() error { return bump }); !errors.Is(err, bump) {
		t.Fatalf("Expected the motion error back, got %v", err)
	}

	// The motion slot must be free again after a failed motion.
	if err := lock.Assess(context.Background(), func() {}); err != nil {
		t.Fatalf("Assess after a failed motion failed: %v", err)
	}
}

func TestLockAssessWaitsForMotion(t *testing.T) {
	lock := NewClassLock(ClassNavigation)

	release, err := lock.Acquire(context.Background(), "actor")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	started := make(chan struct{})
	finish := make(chan struct{})
	moveDone := make(chan error, 1)
	go func() {
		moveDone <- lock.Move(context.Background(), func() error {
			close(started)
			<-finish
			return nil
		})
	}()
	<-started

	assessed := make(chan struct{})
	go func() {
		if err := lock.Assess(context.Background(), func() {}); err != nil {
			t.Errorf("Assess failed: %v", err)
		}
		close(assessed)
	}()

	select {
	case <-assessed:
		t.Fatal("Expected Assess to wait for the motion in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(finish)
	if err := <-moveDone; err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	select {
	case <-assessed:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Assess to proceed once the motion finished")
	}
}

func TestLockSetClasses(t *testing.T) {
	set := NewLockSet()

	nav := set.Class(ClassNavigation)
	if set.Class(ClassNavigation) != nav {
		t.Fatal("Expected the same lock for repeated Class calls")
	}
	man := set.Class(ClassManipulation)
	if man == nav {
		t.Fatal("Expected distinct locks per class")
	}

	release, err := nav.Acquire(context.Background(), "goal-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	snap := set.Snapshot()
	if snap[ClassNavigation] != LockHeld {
		t.Fatalf("Expected %s held in the snapshot, got %q", ClassNavigation, snap[ClassNavigation])
	}
	if snap[ClassManipulation] != LockIdle {
		t.Fatalf("Expected %s idle in the snapshot, got %q", ClassManipulation, snap[ClassManipulation])
	}
	release()
}
