package policy

import (
	"strings"
	"time"

	"github.com/openrove/openrove/pkg/world"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed but do not
	// block the action.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block the action.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that block the action and must be
	// addressed immediately.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Action is the action kind that violated the policy.
	Action string `json:"action,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains additional violation details.
	Details map[string]interface{} `json:"details,omitempty"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Decision represents the outcome of gating an action against the loaded
// policies. Allowed is false when any violation carries error or critical
// severity; warnings are reported but do not block.
type Decision struct {
	// Allowed indicates if the action may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block the action,
	// for example a policy that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the decision was made.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Reason flattens the violation messages into a single string for failure
// messages and events.
func (d *Decision) Reason() string {
	if len(d.Violations) == 0 {
		return ""
	}
	msgs := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

// ActionInput describes an action the executive is about to dispatch. It is
// the input document for Rego evaluation; policies read it as input.action.
type ActionInput struct {
	// Kind names the action being gated, "navigate" or "perform".
	Kind string `json:"kind"`

	// Verb is the manipulation verb for perform actions, e.g. "pick".
	Verb string `json:"verb,omitempty"`

	// Class is the coordination class the action runs under.
	Class string `json:"class,omitempty"`

	// Target is the target pose, for actions that have one.
	Target *world.Pose `json:"target,omitempty"`

	// Robot is the robot pose at evaluation time.
	Robot *world.Pose `json:"robot,omitempty"`

	// ObjectID is the object the action operates on, if any.
	ObjectID string `json:"object_id,omitempty"`

	// Carrying reports whether the robot currently holds an object.
	Carrying bool `json:"carrying"`

	// Params carries action-specific parameters.
	Params map[string]interface{} `json:"params,omitempty"`
}

// EvalContext provides context information for policy evaluation.
type EvalContext struct {
	// Environment is the deployment environment, e.g. "production" or
	// "simulation".
	Environment string `json:"environment,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// DryRun indicates if this is a dry-run evaluation.
	DryRun bool `json:"dry_run"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// gateInput is the full input document handed to Rego.
type gateInput struct {
	Action  *ActionInput `json:"action"`
	Context *EvalContext `json:"context"`
}

// PolicyBundle represents a collection of related policies.
type PolicyBundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}
