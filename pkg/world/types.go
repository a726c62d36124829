package world

import (
	"fmt"
	"math"
)

// Pose is a position and heading in the fixed world frame.
type Pose struct {
	// X is the position along the world x axis in meters.
	X float64 `json:"x"`

	// Y is the position along the world y axis in meters.
	Y float64 `json:"y"`

	// Z is the position along the world z axis in meters.
	Z float64 `json:"z"`

	// Yaw is the heading about the vertical axis in radians.
	Yaw float64 `json:"yaw"`
}

// DistanceTo returns the euclidean distance between two poses, ignoring
// heading.
func (p Pose) DistanceTo(q Pose) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Near reports whether p is within tolerance meters of q, ignoring heading.
func (p Pose) Near(q Pose, tolerance float64) bool {
	return p.DistanceTo(q) <= tolerance
}

// String renders the pose for logs and events.
func (p Pose) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f; yaw %.2f)", p.X, p.Y, p.Z, p.Yaw)
}

// Object is a physical object as perceived in the scene.
type Object struct {
	// ID is the unique object identifier.
	ID string `json:"id"`

	// Type is the object class, e.g. "mug" or "plate".
	Type string `json:"type"`

	// Pose is the object's pose in the world frame.
	Pose Pose `json:"pose"`
}

// Action is a concrete manipulation action request.
type Action struct {
	// Verb names the action, e.g. "pick" or "place".
	Verb string `json:"verb"`

	// ObjectID is the object the action operates on, if any.
	ObjectID string `json:"object_id,omitempty"`

	// Target is the target pose for actions that have one.
	Target Pose `json:"target,omitempty"`

	// Params carries action-specific parameters.
	Params map[string]interface{} `json:"params,omitempty"`
}
