// Package goal implements the executive layer: durable goals built from
// the plan combinators, the world interfaces and the class lock protocol.
//
// # Executive
//
// An Executive owns the robot-side state every goal shares: the robot pose
// fluent fed by the pose feed, the carried-object fluent, the class lock
// set, the task tree, scene belief and the telemetry sinks. Goals are
// methods on the Executive; each one runs under a generated goal ID with
// its own task tree node, trace span and lifecycle events.
//
//	exec, err := goal.NewExecutive(goal.Options{
//		PoseFeed:  sim,
//		Navigator: sim,
//		Perceptor: sim,
//		Performer: sim,
//		Sink:      sim,
//	})
//	if err != nil {
//		return err
//	}
//	defer exec.Close()
//
//	kitchen := desig.NewLocation("kitchen", nil,
//		desig.NewStatic(world.Pose{X: 4, Y: 2}))
//	err = exec.AtLocation(ctx, kitchen, nil)
//
// # Class locks
//
// Actuator classes (navigation, manipulation) are exclusive. A ClassLock
// pairs a primary slot, held for as long as a goal owns the class, with a
// motion slot held only around individual motions. Monitors use Assess to
// read state with no motion in flight without owning the class. The lock's
// state machine is published on a fluent, so dashboards and tests can
// watch Idle, Acquiring, Held and Releasing transitions as they happen.
//
// # AtLocation
//
// AtLocation races an acting branch against a monitor. The actor acquires
// the navigation lock, navigates when the robot is not already at the
// target and then parks, keeping the class owned. The monitor waits on a
// derived at-target fluent, confirms the reading under the motion lock and
// runs the caller's body while watching for the location to be lost. A
// loss cancels the body and re-triggers navigation; repeated losses past
// the configured cap abort the goal with a navigation-lost-repeatedly
// failure. Unreachable targets advance the location designator through its
// alternatives before giving up.
//
// # FetchObject
//
// FetchObject chains perception, travel and grasping: resolve the object
// designator against the perceptor (re-perceiving on unresolvable
// bindings), run AtLocation to the pick location and grasp the object as
// the location body with the manipulation lock short-held around the arm
// motion. Success records the object as carried and retracts it from the
// published world model.
//
// # Safety gating
//
// When the Executive carries an ActionGate, every navigation and
// manipulation is evaluated before it reaches hardware. Denials surface as
// recoverable plan failures, so the retry machinery routes around a
// forbidden pose the same way it routes around an unreachable one.
package goal
