// Package mission loads declarative mission files and runs them through
// the goal executive.
//
// # Overview
//
// A mission is a YAML document naming a set of goal steps and the
// ordering constraints between them:
//
//	name: morning-round
//	steps:
//	  - id: goto-kitchen
//	    goal: at_location
//	    target:
//	      pose: {x: 2.0, y: 1.5, yaw: 0.0}
//	  - id: fetch-mug
//	    goal: fetch_object
//	    requires: [goto-kitchen]
//	    object:
//	      props: {type: mug}
//	    target:
//	      resolver: near-table
//	  - id: dock
//	    goal: at_location
//	    after: [fetch-mug]
//	    target:
//	      pose: {x: 0.0, y: 0.0, yaw: 3.14}
//	    retries: 2
//
// BuildGraph levels the steps so that everything without unmet
// constraints runs concurrently:
//
//   - requires gates a step on its dependencies succeeding; if one of
//     them fails or is skipped, the step is skipped.
//   - after only orders execution. The step runs regardless of how its
//     predecessors ended.
//
// The Runner walks the levels, bounding in-level parallelism with
// MaxConcurrent, retrying failed steps with exponential backoff, and
// stopping after the first failed level unless ContinueOnFailure is set.
// Each run gets a mission trace span, mission lifecycle events, and,
// when a journal recorder is attached, one persisted episode.
//
// # Step Goals
//
// Two goal types map onto the executive's operations:
//
//   - at_location drives the robot to the target and optionally holds it
//     there for a duration.
//   - fetch_object approaches the target, perceives the described object
//     and picks it up.
//
// Targets name either a fixed pose or a pose resolver registered with
// the runner under Options.Resolvers.
//
// # Statuses
//
// Steps move pending -> running -> succeeded, failed, skipped or
// cancelled. The mission status summarizes them: succeeded when every
// step succeeded, partial on a mix, failed when nothing succeeded, and
// aborted when the run context was cancelled.
package mission
