package mission

import (
	"encoding/json"
	"fmt"
)

// Status represents the overall outcome of a mission run.
type Status string

const (
	// StatusPending indicates the mission has not started yet.
	StatusPending Status = "pending"

	// StatusRunning indicates the mission is currently executing.
	StatusRunning Status = "running"

	// StatusSucceeded indicates every step succeeded.
	StatusSucceeded Status = "succeeded"

	// StatusFailed indicates at least one step failed and none succeeded,
	// or the run stopped before anything could succeed.
	StatusFailed Status = "failed"

	// StatusPartial indicates a mix of succeeded and failed or skipped
	// steps.
	StatusPartial Status = "partial"

	// StatusAborted indicates the run was cancelled from outside.
	StatusAborted Status = "aborted"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusPartial, StatusAborted:
		return true
	default:
		return false
	}
}

// IsActive returns true if the mission is still in progress.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// Validate checks if the status value is valid.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed,
		StatusPartial, StatusAborted:
		return nil
	default:
		return fmt.Errorf("invalid mission status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := Status(str)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}

// StepStatus represents the state of a single mission step.
type StepStatus string

const (
	// StepPending indicates the step has not run yet.
	StepPending StepStatus = "pending"

	// StepRunning indicates the step is executing.
	StepRunning StepStatus = "running"

	// StepSucceeded indicates the step's goal was achieved.
	StepSucceeded StepStatus = "succeeded"

	// StepFailed indicates the step's goal failed on every attempt.
	StepFailed StepStatus = "failed"

	// StepSkipped indicates a required step did not succeed, so this one
	// never ran.
	StepSkipped StepStatus = "skipped"

	// StepCancelled indicates the run was aborted before or during the
	// step.
	StepCancelled StepStatus = "cancelled"
)

// IsTerminal returns true if the step reached a final state.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepSucceeded, StepFailed, StepSkipped, StepCancelled:
		return true
	default:
		return false
	}
}

// Validate checks if the step status value is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepPending, StepRunning, StepSucceeded, StepFailed,
		StepSkipped, StepCancelled:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}
