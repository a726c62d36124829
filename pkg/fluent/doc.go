// Package fluent provides the reactive value cell the OpenRove executive is
// built on.
//
// # Overview
//
// A Fluent is a thread-safe value holder with change notification. World
// state that arrives asynchronously (robot pose updates, designator
// rebinds) is written into fluents; plan branches block on them with
// WaitFor instead of polling. Every write bumps an internal version counter
// and wakes every waiter, so a waiter re-evaluates its predicate exactly
// once per change.
//
// # Waiting
//
// WaitFor blocks until a predicate holds on the current value:
//
//	pose := fluent.New("robot-pose", world.Pose{})
//	at, err := pose.WaitFor(ctx, func(p world.Pose) bool {
//	    return p.DistanceTo(target) < tolerance
//	})
//
// The version counter and the broadcast channel are read under the same
// lock that guards the value, so a write between the predicate check and
// going to sleep cannot be missed. Cancellation is a separate wake path:
// WaitFor always also listens on ctx.Done, which is what makes the
// "park forever until the sibling branch wins" pattern safe.
//
// Waiters are guaranteed to observe that a change happened after the
// version they last saw; intermediate values between two wake-ups of one
// waiter may be coalesced.
//
// # Pulses
//
// Pulses is the edge-triggered view: each transition of the underlying
// fluent is observed at most once, which is how a monitor branch re-checks
// a goal condition once per relevant world change rather than continuously.
//
// # Derived Fluents
//
// Derived fluents recompute from their inputs whenever any input changes:
//
//	atTarget, done := fluent.Combine2("at-target", pose, target,
//	    func(p world.Pose, t world.Pose) bool {
//	        return p.DistanceTo(t) < tolerance
//	    })
//	defer done()
//
// Combining functions must be pure and must not write their own input
// fluents. The returned release function detaches the derived fluent from
// its inputs; callers create derived fluents per goal invocation and
// release them on exit.
//
// A fluent never fails. The only error WaitFor and Next return is the
// context's error when the wait is cancelled.
package fluent
