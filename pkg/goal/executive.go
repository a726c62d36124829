package goal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openrove/openrove/pkg/fluent"
	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/policy"
	"github.com/openrove/openrove/pkg/telemetry"
	"github.com/openrove/openrove/pkg/world"
)

// Default tuning for the executive. The retry limits bound the recovery
// loops; when a limit is exhausted the original failure propagates.
const (
	// DefaultPoseTolerance is how close the robot must be to a target
	// pose, in meters, for the location to count as reached.
	DefaultPoseTolerance = 0.15

	// DefaultAtLocationRetryLimit bounds how often navigation may be
	// re-triggered after the reached location is lost again before the
	// goal fails for good.
	DefaultAtLocationRetryLimit = 10

	// DefaultNavigationRetryLimit bounds how many alternative candidate
	// poses are tried when a navigation target is unreachable.
	DefaultNavigationRetryLimit = 3

	// DefaultManipulationRetryLimit bounds grasp retries.
	DefaultManipulationRetryLimit = 3

	// DefaultPerceptionRetryLimit bounds re-perception attempts when an
	// object designator does not resolve.
	DefaultPerceptionRetryLimit = 2
)

// ActionGate decides whether an executive action may be dispatched. It is
// satisfied by *policy.Engine; a nil gate allows everything.
type ActionGate interface {
	EvaluateAction(ctx context.Context, action policy.ActionInput) (*policy.Decision, error)
}

// Options configures an Executive. PoseFeed and Navigator are required;
// everything else has a working default. Perceptor, Performer and Sink are
// only needed for object goals.
type Options struct {
	PoseFeed  world.PoseFeed
	Navigator world.Navigator
	Perceptor world.Perceptor
	Performer world.Performer
	Sink      world.ObjectSink

	// Locks is the shared lock set. Executives that must coordinate with
	// each other are given the same set.
	Locks *LockSet

	// Tree records the task invocation tree.
	Tree *plan.Tree

	// Belief stores object sightings.
	Belief *world.Belief

	// Gate is consulted before every navigation and manipulation action.
	Gate ActionGate

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Events  *telemetry.EventPublisher
	Tracer  *telemetry.Tracer

	PoseTolerance          float64
	AtLocationRetryLimit   int
	NavigationRetryLimit   int
	ManipulationRetryLimit int
	PerceptionRetryLimit   int
}

// Executive runs plan goals against the robot interfaces. It owns the pose
// fluent fed by the pose subscription and the holding fluent tracking the
// carried object.
type Executive struct {
	nav       world.Navigator
	perceptor world.Perceptor
	performer world.Performer
	sink      world.ObjectSink

	locks  *LockSet
	tree   *plan.Tree
	belief *world.Belief
	gate   ActionGate

	log     *telemetry.Logger
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher
	tracer  *telemetry.Tracer

	pose    *fluent.Fluent[world.Pose]
	holding *fluent.Fluent[string]

	unsubscribe func()
	active      atomic.Int64

	tolerance         float64
	atLocationRetries int
	navRetries        int
	manipRetries      int
	perceiveRetries   int
}

// NewExecutive creates an executive and subscribes it to the pose feed.
// Call Close to drop the subscription.
func NewExecutive(opts Options) (*Executive, error) {
	if opts.PoseFeed == nil {
		return nil, errors.New("executive requires a pose feed")
	}
	if opts.Navigator == nil {
		return nil, errors.New("executive requires a navigator")
	}

	e := &Executive{
		nav:       opts.Navigator,
		perceptor: opts.Perceptor,
		performer: opts.Performer,
		sink:      opts.Sink,
		locks:     opts.Locks,
		tree:      opts.Tree,
		belief:    opts.Belief,
		gate:      opts.Gate,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		events:    opts.Events,
		tracer:    opts.Tracer,

		pose:    fluent.New("robot-pose", world.Pose{}),
		holding: fluent.New("holding", ""),

		tolerance:         opts.PoseTolerance,
		atLocationRetries: opts.AtLocationRetryLimit,
		navRetries:        opts.NavigationRetryLimit,
		manipRetries:      opts.ManipulationRetryLimit,
		perceiveRetries:   opts.PerceptionRetryLimit,
	}

	if e.locks == nil {
		e.locks = NewLockSet()
	}
	if e.tree == nil {
		e.tree = plan.NewTree()
	}
	if e.belief == nil {
		e.belief = world.NewBelief(0)
	}
	if e.tolerance <= 0 {
		e.tolerance = DefaultPoseTolerance
	}
	if e.atLocationRetries <= 0 {
		e.atLocationRetries = DefaultAtLocationRetryLimit
	}
	if e.navRetries <= 0 {
		e.navRetries = DefaultNavigationRetryLimit
	}
	if e.manipRetries <= 0 {
		e.manipRetries = DefaultManipulationRetryLimit
	}
	if e.perceiveRetries <= 0 {
		e.perceiveRetries = DefaultPerceptionRetryLimit
	}

	if e.log == nil {
		logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
			Level:  "error",
			Format: "json",
			Output: "stderr",
		})
		if err != nil {
			return nil, fmt.Errorf("default logger: %w", err)
		}
		e.log = logger
	}
	e.log = e.log.NewComponentLogger("executive")

	if e.metrics == nil {
		m, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("default metrics: %w", err)
		}
		e.metrics = m
	}
	if e.events == nil {
		ep, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("default events: %w", err)
		}
		e.events = ep
	}
	if e.tracer == nil {
		tr, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: false}, "rove", "", "")
		if err != nil {
			return nil, fmt.Errorf("default tracer: %w", err)
		}
		e.tracer = tr
	}

	e.unsubscribe = opts.PoseFeed.OnPoseChanged(func(p world.Pose) {
		e.pose.Set(p)
		e.metrics.RecordFluentWrite("robot-pose")
	})

	return e, nil
}

// Close drops the pose subscription. Goals already running keep their last
// observed pose.
func (e *Executive) Close() error {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	return nil
}

// Pose returns the fluent tracking the robot pose.
func (e *Executive) Pose() *fluent.Fluent[world.Pose] {
	return e.pose
}

// Holding returns the fluent tracking the carried object ID, "" when the
// gripper is empty.
func (e *Executive) Holding() *fluent.Fluent[string] {
	return e.holding
}

// Tree returns the task invocation tree.
func (e *Executive) Tree() *plan.Tree {
	return e.tree
}

// Locks returns the executive's lock set.
func (e *Executive) Locks() *LockSet {
	return e.locks
}

// Belief returns the object belief store.
func (e *Executive) Belief() *world.Belief {
	return e.belief
}

// runGoal wraps a top-level goal with task tree bookkeeping, tracing,
// metrics and events. The goal ID is handed to the step for event
// correlation.
func (e *Executive) runGoal(ctx context.Context, class, name string, step func(ctx context.Context, goalID string) error) (err error) {
	goalID := uuid.New().String()
	start := time.Now()

	ctx, span := e.tracer.StartGoalSpan(ctx, goalID, class)
	defer span.End()

	ctx, finish := e.tree.Begin(ctx, class, map[string]interface{}{
		"name":    name,
		"goal_id": goalID,
	})

	e.metrics.RecordGoalStarted(class)
	e.metrics.SetActiveGoals(float64(e.active.Add(1)))
	_ = e.events.PublishGoalStarted("", goalID, class)

	log := e.log.WithGoal(goalID, class)
	log.Info("Goal started")

	defer func() {
		duration := time.Since(start)
		finish(err)
		e.metrics.SetActiveGoals(float64(e.active.Add(-1)))
		if err != nil {
			e.metrics.RecordGoalCompleted(class, "failed", duration)
			_ = e.events.PublishGoalFailed("", goalID, class, err.Error())
			telemetry.RecordError(span, err)
			log.WithError(err).Error("Goal failed")
			if kind := plan.KindOf(err); kind != "" {
				e.metrics.RecordFailure(string(kind))
				_ = e.events.PublishFailureRaised(goalID, string(kind), err.Error())
			}
		} else {
			e.metrics.RecordGoalCompleted(class, "succeeded", duration)
			_ = e.events.PublishGoalSucceeded("", goalID, class, duration)
			telemetry.RecordSuccess(span)
			log.Infof("Goal succeeded in %s", duration)
		}
	}()

	err = step(ctx, goalID)
	return err
}

// gateNavigate consults the action gate before a navigation motion. A
// denial surfaces as an unreachable failure so the alternative-pose retry
// can pick a different candidate.
func (e *Executive) gateNavigate(ctx context.Context, target world.Pose) error {
	if e.gate == nil {
		return nil
	}
	robot := e.pose.Value()
	decision, err := e.gate.EvaluateAction(ctx, policy.ActionInput{
		Kind:     "navigate",
		Class:    ClassNavigation,
		Target:   &target,
		Robot:    &robot,
		Carrying: e.holding.Value() != "",
	})
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	if !decision.Allowed {
		reason := decision.Reason()
		_ = e.events.PublishPolicyViolation("navigate", firstViolatedPolicy(decision), reason)
		return plan.NewUnreachable("policy-denied", errors.New(reason))
	}
	return nil
}

// gatePerform consults the action gate before a manipulation action. A
// denial surfaces as a manipulation failure.
func (e *Executive) gatePerform(ctx context.Context, action world.Action) error {
	if e.gate == nil {
		return nil
	}
	robot := e.pose.Value()
	target := action.Target
	decision, err := e.gate.EvaluateAction(ctx, policy.ActionInput{
		Kind:     "perform",
		Verb:     action.Verb,
		Class:    ClassManipulation,
		Target:   &target,
		Robot:    &robot,
		ObjectID: action.ObjectID,
		Carrying: e.holding.Value() != "",
		Params:   action.Params,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	if !decision.Allowed {
		reason := decision.Reason()
		_ = e.events.PublishPolicyViolation("perform", firstViolatedPolicy(decision), reason)
		return plan.NewManipulationFailure(action.Verb, errors.New(reason))
	}
	return nil
}

func firstViolatedPolicy(d *policy.Decision) string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Policy
}
