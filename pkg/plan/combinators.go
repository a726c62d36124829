package plan

import (
	"context"
	"sync"
)

// Step is one unit of plan code. Steps receive the cancellation context of
// the construct that runs them and must return promptly once it is
// cancelled; blocking is only allowed inside fluent waits, which observe
// the context.
type Step func(ctx context.Context) error

// Seq runs steps in order on the calling goroutine. Each step must complete
// before the next starts; the first failing step aborts the rest and its
// error propagates immediately. A cancelled context aborts between steps.
func Seq(ctx context.Context, steps ...Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Pursue runs every branch on its own goroutine under a shared cancellable
// context. The first branch to return, normally or with a failure, becomes
// the outcome; every other branch is cancelled and Pursue waits for all of
// them to finish their teardown before returning. No branch outlives the
// call, so a resource released by defer inside a branch, a goal lock in
// particular, is released before Pursue returns.
//
// A winning branch's failure is returned after cancellation completes,
// never suppressed. Losing branches unwind with the context's error, which
// is discarded.
func Pursue(ctx context.Context, branches ...Step) error {
	if len(branches) == 0 {
		return NewPlanFailure("pursue requires at least one branch")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, len(branches))
	var wg sync.WaitGroup
	for _, branch := range branches {
		wg.Add(1)
		go func(branch Step) {
			defer wg.Done()
			results <- branch(ctx)
		}(branch)
	}

	// First result wins. Cancel the siblings, then wait for every branch
	// to unwind so that strict lifetime nesting holds.
	winner := <-results
	cancel()
	wg.Wait()

	return winner
}
