// Package world defines the executive's view of the physical world: the
// pose feed, the motion and perception primitives and the world-model sink,
// all at interface level, plus an in-memory simulation used by tests and
// the demo CLI and a TTL'd belief store for perception results.
//
// The executive never talks to hardware or middleware directly; production
// deployments implement these interfaces as thin adapters over their robot
// stack. The interfaces are deliberately small: the concurrency core only
// needs pose notifications, blocking primitives that classify their
// failures, and a fire-and-forget object publisher.
package world
