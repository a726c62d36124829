package world

import "context"

// PoseFeed is the push subscription for robot pose updates. The executive
// subscribes once per invocation tree and forwards updates into its pose
// fluent; it never polls.
type PoseFeed interface {
	// OnPoseChanged registers fn to be called on every pose update and
	// returns a function that removes the subscription. Callbacks must be
	// fast; they run on the feed's delivery goroutine.
	OnPoseChanged(fn func(Pose)) func()
}

// Navigator executes base motion.
type Navigator interface {
	// Navigate moves the robot base to target, blocking until the motion
	// completes or fails. Implementations classify an unreachable or
	// refused target as an unreachable failure so retry handlers can
	// dispatch on it; context cancellation aborts the motion.
	Navigate(ctx context.Context, target Pose) error
}

// Perceptor resolves object descriptions against the perceived scene.
type Perceptor interface {
	// Perceive finds an object matching the designator properties, for
	// example {"type": "mug"}. A scene with no match yields a
	// designator-unresolvable failure.
	Perceive(ctx context.Context, props map[string]interface{}) (Object, error)
}

// Performer executes manipulation actions.
type Performer interface {
	// Perform executes action, blocking until it completes or fails.
	// Implementations classify failed steps as manipulation failures.
	Perform(ctx context.Context, action Action) error
}

// ObjectSink is the downstream world-model publisher. It accepts object
// pose updates and removals for rendering and collision checking; the
// executive never reads it back.
type ObjectSink interface {
	// PublishObjectPose reports that an object is present at pose.
	PublishObjectPose(id string, pose Pose)

	// PublishObjectRemoved reports that an object left the scene.
	PublishObjectRemoved(id string)
}
