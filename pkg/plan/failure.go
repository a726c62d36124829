package plan

import (
	"errors"
	"fmt"
)

// FailureKind classifies a plan failure for handler dispatch and recovery
// logic.
type FailureKind string

const (
	// FailureUnreachable indicates a target pose could not be reached.
	// Recoverable: handlers typically retry with an alternative solution.
	FailureUnreachable FailureKind = "unreachable"

	// FailureDesignatorUnresolvable indicates a designator has no solution,
	// or no further alternative. Recoverable at scopes that can relax or
	// replace the designator.
	FailureDesignatorUnresolvable FailureKind = "designator-unresolvable"

	// FailureManipulation indicates a manipulation step failed.
	// Recoverable: handlers typically retry with a different grasp or pose.
	FailureManipulation FailureKind = "manipulation"

	// FailureNavigationLost indicates the goal location was lost and
	// re-navigated more times than the oscillation cap allows.
	// Fatal: never retried, terminates the enclosing goal.
	FailureNavigationLost FailureKind = "navigation-lost-repeatedly"

	// FailureGeneric is an unclassified plan failure.
	FailureGeneric FailureKind = "plan-failure"
)

// Failure represents a classified plan failure with context. It propagates
// like a normal error; handler dispatch matches on Kind.
type Failure struct {
	// Kind is the failure classification for handler dispatch.
	Kind FailureKind `json:"kind"`

	// Message is the human-readable failure message.
	Message string `json:"message"`

	// Goal is the goal path that raised the failure, if known.
	Goal string `json:"goal,omitempty"`

	// PoseKind names the kind of pose that was unreachable, if applicable.
	PoseKind string `json:"pose_kind,omitempty"`

	// Step is the manipulation step that failed, if applicable.
	Step string `json:"step,omitempty"`

	// Designator is the designator that could not be resolved, if applicable.
	Designator string `json:"designator,omitempty"`

	// Count carries the retry or loss count for bounded failures.
	Count int `json:"count,omitempty"`

	// Err is the underlying error that caused this failure.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	msg := fmt.Sprintf("[%s] %s", f.Kind, f.Message)
	if f.Goal != "" {
		msg = fmt.Sprintf("[%s] %s (goal=%s)", f.Kind, f.Message, f.Goal)
	}
	if f.Err != nil {
		return msg + ": " + f.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is implements error equality for errors.Is: two failures are equal when
// their kinds match.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return f.Kind == t.Kind
}

// NewUnreachable creates an unreachable-pose failure.
func NewUnreachable(poseKind string, err error) *Failure {
	return &Failure{
		Kind:     FailureUnreachable,
		Message:  "target pose unreachable",
		PoseKind: poseKind,
		Err:      err,
	}
}

// NewDesignatorUnresolvable creates a failure for a designator with no
// (further) solution.
func NewDesignatorUnresolvable(designator string) *Failure {
	return &Failure{
		Kind:       FailureDesignatorUnresolvable,
		Message:    "designator could not be resolved",
		Designator: designator,
	}
}

// NewManipulationFailure creates a failure for a failed manipulation step.
func NewManipulationFailure(step string, err error) *Failure {
	return &Failure{
		Kind:    FailureManipulation,
		Message: "manipulation failed",
		Step:    step,
		Err:     err,
	}
}

// NewNavigationLostRepeatedly creates the fatal failure raised when the
// oscillation cap is exceeded. Count is the number of re-navigations that
// were performed before giving up.
func NewNavigationLostRepeatedly(count int) *Failure {
	return &Failure{
		Kind:    FailureNavigationLost,
		Message: fmt.Sprintf("navigation lost %d times, aborting", count),
		Count:   count,
	}
}

// NewPlanFailure creates a generic plan failure.
func NewPlanFailure(message string) *Failure {
	return &Failure{
		Kind:    FailureGeneric,
		Message: message,
	}
}

// WithGoal adds the raising goal's path to a failure.
func (f *Failure) WithGoal(goal string) *Failure {
	f.Goal = goal
	return f
}

// WithDetail adds a detail field to the failure context.
func (f *Failure) WithDetail(key string, value interface{}) *Failure {
	if f.Details == nil {
		f.Details = make(map[string]interface{})
	}
	f.Details[key] = value
	return f
}

// KindOf returns the failure kind of err, or an empty kind if err is not a
// classified failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// AsFailure extracts the classified failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsUnreachable returns true if the error is an unreachable-pose failure.
func IsUnreachable(err error) bool {
	return KindOf(err) == FailureUnreachable
}

// IsDesignatorUnresolvable returns true if the error is a designator
// resolution failure.
func IsDesignatorUnresolvable(err error) bool {
	return KindOf(err) == FailureDesignatorUnresolvable
}

// IsManipulationFailure returns true if the error is a manipulation failure.
func IsManipulationFailure(err error) bool {
	return KindOf(err) == FailureManipulation
}

// IsNavigationLost returns true if the error is the fatal repeated-loss
// failure.
func IsNavigationLost(err error) bool {
	return KindOf(err) == FailureNavigationLost
}

// IsRecoverable returns true if the failure kind is one bounded-retry
// handlers may recover from. Unreachable, manipulation and designator
// failures are recoverable; repeated navigation loss is not.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case FailureUnreachable, FailureManipulation, FailureDesignatorUnresolvable:
		return true
	}
	return false
}
