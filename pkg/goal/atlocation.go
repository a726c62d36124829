package goal

import (
	"context"
	"errors"
	"time"

	"github.com/openrove/openrove/pkg/desig"
	"github.com/openrove/openrove/pkg/fluent"
	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/telemetry"
	"github.com/openrove/openrove/pkg/world"
)

// errLocationLost signals inside AtLocation that a reached target was lost
// again. It never escapes this file; the round loop converts it into either
// a re-navigation or a navigation-lost-repeatedly failure.
var errLocationLost = errors.New("target location lost")

// AtLocation brings the robot to the location described by loc and runs
// body while it is there.
//
// The goal is a race between an acting branch and a monitor branch. The
// actor acquires the navigation class lock, navigates if the robot is not
// already at the target, then parks holding the lock. The monitor waits on
// the derived at-target fluent, confirms the reading under the motion lock
// and then runs body, watching for the location to be lost concurrently.
// The first branch to finish decides the round; cancellation of the race
// releases the class lock before AtLocation's race returns.
//
// A lost location re-triggers navigation. More than the configured number
// of re-triggers fails the goal with a navigation-lost-repeatedly failure
// carrying the retry cap.
//
// Body may be nil; the goal then just achieves the location. Body re-runs
// from the start on every re-navigation round, so it must be idempotent or
// guard its own progress.
func (e *Executive) AtLocation(ctx context.Context, loc *desig.Location, body plan.Step) error {
	return e.runGoal(ctx, "at-location", loc.Name(), func(ctx context.Context, goalID string) error {
		return e.atLocation(ctx, goalID, loc, body)
	})
}

func (e *Executive) atLocation(ctx context.Context, goalID string, loc *desig.Location, body plan.Step) error {
	if _, err := loc.Resolve(ctx); err != nil {
		return err
	}

	// True while the robot pose is within tolerance of the current
	// binding. Recomputed on every pose update and on every rebind.
	atTarget, release := fluent.Combine2("at-"+loc.Name(), e.pose, loc.Rebinds(),
		func(p world.Pose, _ int) bool {
			target, ok := loc.Current()
			return ok && p.Near(target, e.tolerance)
		})
	defer release()

	lock := e.locks.Class(ClassNavigation)
	log := e.log.WithGoal(goalID, "at-location")

	losses := 0
	for {
		err := e.locationRound(ctx, goalID, lock, loc, atTarget, body)
		if !errors.Is(err, errLocationLost) {
			return err
		}

		losses++
		if losses > e.atLocationRetries {
			return plan.NewNavigationLostRepeatedly(e.atLocationRetries)
		}

		e.metrics.RecordNavigationRetrigger()
		_ = e.events.PublishNavigationLost(goalID, losses)
		log.Warnf("Target location lost (loss %d), re-navigating", losses)
	}
}

// locationRound runs one race round. It returns nil or body's error when
// the monitor saw the goal through, errLocationLost when the target was
// lost, or the actor's failure when navigation gave up.
func (e *Executive) locationRound(ctx context.Context, goalID string, lock *ClassLock, loc *desig.Location, atTarget *fluent.Fluent[bool], body plan.Step) error {
	actor := func(ctx context.Context) error {
		waitStart := time.Now()
		release, err := lock.Acquire(ctx, goalID)
		if err != nil {
			return err
		}
		e.metrics.RecordLockAcquired(lock.Name(), time.Since(waitStart))
		_ = e.events.PublishLockAcquired(lock.Name(), goalID)
		heldAt := time.Now()
		defer func() {
			release()
			e.metrics.RecordLockReleased(lock.Name(), time.Since(heldAt))
			_ = e.events.PublishLockReleased(lock.Name(), goalID)
		}()

		if !atTarget.Value() {
			if err := e.navigate(ctx, goalID, lock, loc); err != nil {
				return err
			}
		}

		// Park holding the lock. The fluent is never set, so this
		// blocks until the round is decided elsewhere and keeps the
		// class owned for the goal's whole lifetime.
		parked := fluent.New("parked-"+loc.Name(), false)
		return fluent.WaitTrue(ctx, parked)
	}

	monitor := func(ctx context.Context) error {
		if err := fluent.WaitTrue(ctx, atTarget); err != nil {
			return err
		}

		// Confirm under the motion lock so an in-flight motion cannot
		// invalidate the reading mid-check. A reading revoked between
		// wakeup and confirmation counts as a loss.
		confirmed := false
		if err := lock.Assess(ctx, func() { confirmed = atTarget.Value() }); err != nil {
			return err
		}
		if !confirmed {
			return errLocationLost
		}

		watcher := func(ctx context.Context) error {
			if _, err := atTarget.WaitFor(ctx, func(at bool) bool { return !at }); err != nil {
				return err
			}
			e.metrics.RecordPulse(atTarget.Name())
			return errLocationLost
		}
		bodyStep := func(ctx context.Context) error {
			if body == nil {
				return nil
			}
			return plan.Seq(ctx, body)
		}
		return plan.Pursue(ctx, bodyStep, watcher)
	}

	return plan.Pursue(ctx, monitor, actor)
}

// navigate drives one navigation attempt with bounded alternative retry.
// An unreachable target advances the designator to its next candidate and
// tries again; when the alternatives retry budget is exhausted, the
// original unreachable failure propagates. A designator with no further
// solutions fails as unresolvable.
func (e *Executive) navigate(ctx context.Context, goalID string, lock *ClassLock, loc *desig.Location) error {
	retries := plan.NewCounter("navigation-alternatives")
	advance := false

	return plan.Handling(ctx,
		func(ctx context.Context) error {
			if advance {
				advance = false
				if _, err := loc.NextSolution(ctx); err != nil {
					return err
				}
				_ = e.events.PublishDesignatorRebound(loc.Name(), loc.Rebinds().Value())
			}
			return e.navigateOnce(ctx, goalID, lock, loc)
		},
		plan.On(plan.FailureUnreachable, func(f *plan.Failure) plan.Decision {
			return plan.DoRetry(retries, e.navRetries, func() {
				e.metrics.RecordRetry(string(plan.FailureUnreachable))
				_ = e.events.PublishRetryAttempted(goalID, string(plan.FailureUnreachable), retries.Count())
				advance = true
			})
		}),
	)
}

// navigateOnce gates and executes a single base motion to the designator's
// current binding, under the motion lock.
func (e *Executive) navigateOnce(ctx context.Context, goalID string, lock *ClassLock, loc *desig.Location) (err error) {
	target, ok := loc.Current()
	if !ok {
		return plan.NewDesignatorUnresolvable(loc.Name())
	}

	ctx, finish := e.tree.Begin(ctx, "navigate", map[string]interface{}{"target": target.String()})
	defer func() { finish(err) }()

	if err = e.gateNavigate(ctx, target); err != nil {
		return err
	}

	actCtx, span := e.tracer.StartActionSpan(ctx, "navigate")
	defer span.End()

	_ = e.events.PublishNavigationStarted(goalID, target.String())
	start := time.Now()
	err = lock.Move(actCtx, func() error {
		return e.nav.Navigate(actCtx, target)
	})
	e.metrics.RecordActionCall("navigate", time.Since(start))
	if err != nil {
		e.metrics.RecordActionError("navigate")
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	_ = e.events.PublishNavigationArrived(goalID, target.String())
	return nil
}
