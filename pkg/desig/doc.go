// Package desig provides designators: symbolic, lazily-resolved goal
// parameters.
//
// # Overview
//
// A designator names a goal parameter ("a location near the table", "a
// mug") without committing to a concrete value. Resolution asks a Resolver
// for candidate solutions and binds the first; when acting on a solution
// fails, retry handlers step to the next alternative with NextSolution and
// re-run the failed block. Exhausting the candidates fails with a
// designator-unresolvable failure, exactly like having none at all.
//
// # Rebind Notification
//
// Every binding change pulses the designator's rebind fluent, so "the goal
// parameter changed" composes uniformly with other wait conditions:
//
//	atTarget, release := fluent.Combine2("at-target", pose, loc.Rebinds(),
//	    func(p world.Pose, _ int) bool {
//	        target, ok := loc.Current()
//	        return ok && p.Near(target, tolerance)
//	    })
//
// Equate merges new properties into a designator, invalidates its current
// solution and pulses the rebind fluent; the next Resolve fetches fresh
// candidates.
//
// # Resolvers
//
// Candidate generation is pluggable: NewStatic serves a fixed list,
// ResolverFunc adapts a closure (perception-backed object designators are
// built this way), and ScriptResolver evaluates a Starlark script, which
// is how deployment configs describe location distributions without
// recompiling.
package desig
