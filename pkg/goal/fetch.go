package goal

import (
	"context"
	"errors"
	"time"

	"github.com/openrove/openrove/pkg/desig"
	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/telemetry"
	"github.com/openrove/openrove/pkg/world"
)

// FetchObject perceives the object described by obj, travels to the
// location described by at and picks the object up. On success the object
// is recorded as carried, dropped from scene belief and retracted from the
// published world model.
//
// Perception failures re-perceive with a fresh binding up to the
// perception retry budget. The grasp itself runs as the body of an
// AtLocation goal, so a lost location mid-grasp cancels the manipulation
// and re-navigates before trying again.
func (e *Executive) FetchObject(ctx context.Context, obj *desig.Object, at *desig.Location) error {
	if e.perceptor == nil || e.performer == nil {
		return errors.New("fetch-object requires a perceptor and a performer")
	}
	return e.runGoal(ctx, "fetch-object", obj.Name(), func(ctx context.Context, goalID string) error {
		return e.fetchObject(ctx, goalID, obj, at)
	})
}

func (e *Executive) fetchObject(ctx context.Context, goalID string, obj *desig.Object, at *desig.Location) error {
	found, err := e.perceiveObject(ctx, goalID, obj)
	if err != nil {
		return err
	}
	_ = e.events.PublishObjectSeen(found.ID, found.Type)
	e.belief.Observe(found)
	e.metrics.SetObjectsBelieved(float64(len(e.belief.Snapshot())))

	err = e.AtLocation(ctx, at, func(ctx context.Context) error {
		return e.grasp(ctx, goalID, found)
	})
	if err != nil {
		return err
	}

	// The object rides in the gripper now. Remember it as carried and
	// retract it from the scene.
	e.holding.Set(found.ID)
	e.belief.Forget(found.ID)
	e.metrics.SetObjectsBelieved(float64(len(e.belief.Snapshot())))
	if e.sink != nil {
		e.sink.PublishObjectRemoved(found.ID)
	}
	_ = e.events.PublishObjectRemoved(found.ID)
	return nil
}

// perceiveObject resolves the object designator against the perceptor.
// An unresolvable designator drops its binding and re-perceives, up to the
// perception retry budget; past the budget the unresolvable failure
// propagates as-is.
func (e *Executive) perceiveObject(ctx context.Context, goalID string, obj *desig.Object) (world.Object, error) {
	var found world.Object
	retries := plan.NewCounter("perception")

	err := plan.Handling(ctx,
		func(ctx context.Context) (err error) {
			ctx, finish := e.tree.Begin(ctx, "perceive", map[string]interface{}{"object": obj.Name()})
			defer func() { finish(err) }()

			actCtx, span := e.tracer.StartActionSpan(ctx, "perceive")
			defer span.End()

			start := time.Now()
			v, err := obj.Resolve(actCtx)
			e.metrics.RecordActionCall("perceive", time.Since(start))
			if err != nil {
				e.metrics.RecordActionError("perceive")
				telemetry.RecordError(span, err)
				return err
			}
			telemetry.RecordSuccess(span)
			found = v
			return nil
		},
		plan.On(plan.FailureDesignatorUnresolvable, func(f *plan.Failure) plan.Decision {
			return plan.DoRetry(retries, e.perceiveRetries, func() {
				e.metrics.RecordRetry(string(plan.FailureDesignatorUnresolvable))
				_ = e.events.PublishRetryAttempted(goalID, string(plan.FailureDesignatorUnresolvable), retries.Count())
				// Drop the stale binding so the next resolve
				// perceives afresh.
				obj.Equate(nil)
			})
		}),
	)
	if err != nil {
		return world.Object{}, err
	}
	return found, nil
}

// grasp picks up target with the manipulation class lock short-held around
// the arm motion. Failed grasps retry in place up to the manipulation
// retry budget.
func (e *Executive) grasp(ctx context.Context, goalID string, target world.Object) (err error) {
	ctx, finish := e.tree.Begin(ctx, "grasp", map[string]interface{}{"object": target.ID})
	defer func() { finish(err) }()

	action := world.Action{
		Verb:     "pick",
		ObjectID: target.ID,
		Target:   target.Pose,
	}
	retries := plan.NewCounter("grasp")

	return plan.Handling(ctx,
		func(ctx context.Context) error {
			return e.performOnce(ctx, goalID, action)
		},
		plan.On(plan.FailureManipulation, func(f *plan.Failure) plan.Decision {
			return plan.DoRetry(retries, e.manipRetries, func() {
				e.metrics.RecordRetry(string(plan.FailureManipulation))
				_ = e.events.PublishRetryAttempted(goalID, string(plan.FailureManipulation), retries.Count())
			})
		}),
	)
}

// performOnce gates and executes a single manipulation action. The
// manipulation class lock is held only for the duration of the motion.
func (e *Executive) performOnce(ctx context.Context, goalID string, action world.Action) error {
	if err := e.gatePerform(ctx, action); err != nil {
		return err
	}

	lock := e.locks.Class(ClassManipulation)
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

	actCtx, span := e.tracer.StartActionSpan(ctx, action.Verb)
	defer span.End()

	start := time.Now()
	err = lock.Move(actCtx, func() error {
		return e.performer.Perform(actCtx, action)
	})
	e.metrics.RecordActionCall(action.Verb, time.Since(start))
	if err != nil {
		e.metrics.RecordActionError(action.Verb)
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

// ObjectDesignator builds an object designator whose candidates come from
// the executive's perceptor.
func (e *Executive) ObjectDesignator(name string, props map[string]interface{}) *desig.Object {
	return desig.NewObject(name, props, desig.ResolverFunc[world.Object](
		func(ctx context.Context, props map[string]interface{}) ([]world.Object, error) {
			obj, err := e.perceptor.Perceive(ctx, props)
			if err != nil {
				return nil, err
			}
			return []world.Object{obj}, nil
		}))
}
