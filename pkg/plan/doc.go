// Package plan provides the structured-concurrency combinators and the
// typed failure protocol of the OpenRove executive.
//
// # Overview
//
// Plan code is ordinary Go code composed from three mechanisms:
//
//  1. Pursue - run branches in parallel; the first to finish or fail wins
//     and every sibling is cancelled before Pursue returns
//  2. Seq - run steps in order; the first failure aborts the rest
//  3. Handling - install failure handlers lexically around a block; a
//     matched handler can retry the block, unwind it, or let the failure
//     continue upward
//
// Branches communicate through fluents only; everything else is
// branch-local. Cancellation is carried by the context: a branch parked in
// a fluent wait is unblocked by its context, unwinds through its defers
// (releasing any goal locks it holds) and only then does Pursue return.
//
// # Failure Classification
//
// Failures are classified by kind for handler dispatch:
//
//   - FailureUnreachable: a target pose could not be reached (recoverable)
//   - FailureManipulation: a manipulation step failed (recoverable)
//   - FailureDesignatorUnresolvable: no candidate solution left (recoverable)
//   - FailureNavigationLost: navigation lost repeatedly, oscillation cap hit
//     (fatal, never retried)
//   - FailureGeneric: unclassified plan failure
//
// Recoverable kinds are caught by the nearest matching bounded-retry
// handler; once the bound is exhausted the original failure continues
// upward unchanged.
//
// # Bounded Retry
//
// The retry idiom pairs a Counter with DoRetry inside a handler:
//
//	retries := plan.NewCounter("navigation")
//	err := plan.Handling(ctx, navigateStep,
//	    plan.On(plan.FailureUnreachable, func(f *plan.Failure) plan.Decision {
//	        return plan.DoRetry(retries, 3, func() {
//	            _, _ = location.NextSolution(ctx)
//	        })
//	    }))
//
// DoRetry under the limit increments the counter, runs the preparation
// (typically stepping a designator to its next alternative) and retries the
// block from its start. At the limit it is a strict no-op: the original
// failure propagates, unwrapped, to outer scopes.
//
// # Task Tree
//
// Every goal entry pushes a node onto the invocation's task Tree and embeds
// its index into the context; logging, tracing and the journal read the
// current node from there.
package plan
