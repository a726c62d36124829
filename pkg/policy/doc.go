// Package policy provides Open Policy Agent (OPA) based safety gating for
// executive actions.
//
// Every navigation and manipulation action the executive is about to
// dispatch is first evaluated against a set of Rego policies. A denied
// action never reaches the hardware; the executive converts the denial into
// a recoverable plan failure so the retry protocol can pick a different
// candidate pose instead.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, actions, and decisions
//  4. Built-in Policies - Pre-defined safety rules
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Gating a navigation action:
//
//	target := world.Pose{X: 3.5, Y: -1.0}
//	decision, err := engine.EvaluateAction(ctx, policy.ActionInput{
//	    Kind:   "navigate",
//	    Class:  "navigation",
//	    Target: &target,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !decision.Allowed {
//	    for _, violation := range decision.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "/etc/rove/policies",
//	    "/opt/policies/custom.rego",
//	}
//
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. workspace-bounds - Keeps navigation targets inside the mapped workspace
//  2. forbidden-zones - Rejects navigation into zones the robot must never enter
//  3. carried-load - Prevents picking while an object is already carried
//  4. manipulation-reach - Warns when a manipulation target is beyond arm reach
//
// # Custom Policies
//
// Custom policies can be written in Rego and loaded from files. Policies
// read the action under evaluation as input.action:
//
//	package custom.policies.nightmode
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.action.kind == "navigate"
//	    input.context.environment == "production"
//	    input.action.params.speed > 0.5
//
//	    violation := {
//	        "message": "navigation above 0.5 m/s is not allowed in production",
//	        "severity": "error",
//	        "action": "navigate",
//	    }
//	}
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: Informational messages
//   - warning: Issues that are reported but do not block the action
//   - error: Issues that block the action
//   - critical: Severe issues that block the action
//
// A blocked action surfaces to the plan as a recoverable failure, so a
// bounded retry handler may rebind the designator and try a different
// candidate.
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically, so safety rules can be tightened on a running robot:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Policies are compiled once and reused for multiple evaluations. The gate
// sits on the navigation and manipulation dispatch path, which runs at the
// cadence of whole robot motions, so evaluation cost is negligible next to
// the actions it guards.
package policy
