package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in safety policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		workspaceBoundsPolicy(),
		forbiddenZonesPolicy(),
		carriedLoadPolicy(),
		manipulationReachPolicy(),
	}
}

// workspaceBoundsPolicy keeps navigation targets inside the mapped workspace.
func workspaceBoundsPolicy() Policy {
	return Policy{
		Name:        "workspace-bounds",
		Description: "Keeps navigation targets inside the mapped workspace",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety", "navigation"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package rove.safety.workspace

import rego.v1

# Mapped workspace extent in meters.
x_min := -12.0
x_max := 12.0
y_min := -12.0
y_max := 12.0

deny contains violation if {
	input.action.kind == "navigate"
	target := input.action.target
	target.x < x_min
	violation := {
		"message": sprintf("navigation target x=%v is outside the workspace (min %v)", [target.x, x_min]),
		"severity": "error",
		"action": "navigate",
	}
}

deny contains violation if {
	input.action.kind == "navigate"
	target := input.action.target
	target.x > x_max
	violation := {
		"message": sprintf("navigation target x=%v is outside the workspace (max %v)", [target.x, x_max]),
		"severity": "error",
		"action": "navigate",
	}
}

deny contains violation if {
	input.action.kind == "navigate"
	target := input.action.target
	target.y < y_min
	violation := {
		"message": sprintf("navigation target y=%v is outside the workspace (min %v)", [target.y, y_min]),
		"severity": "error",
		"action": "navigate",
	}
}

deny contains violation if {
	input.action.kind == "navigate"
	target := input.action.target
	target.y > y_max
	violation := {
		"message": sprintf("navigation target y=%v is outside the workspace (max %v)", [target.y, y_max]),
		"severity": "error",
		"action": "navigate",
	}
}`,
	}
}

// forbiddenZonesPolicy rejects navigation into zones the robot must never
// enter, such as stairwells and the charging dock apron.
func forbiddenZonesPolicy() Policy {
	return Policy{
		Name:        "forbidden-zones",
		Description: "Rejects navigation targets inside forbidden zones",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"safety", "navigation", "zones"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package rove.safety.zones

import rego.v1

zones := [
	{"name": "stairwell", "x_min": -12.0, "x_max": -10.0, "y_min": 4.0, "y_max": 8.0},
	{"name": "charging-dock", "x_min": 9.0, "x_max": 11.0, "y_min": -11.0, "y_max": -9.0},
]

deny contains violation if {
	input.action.kind == "navigate"
	target := input.action.target
	some zone in zones
	target.x >= zone.x_min
	target.x <= zone.x_max
	target.y >= zone.y_min
	target.y <= zone.y_max
	violation := {
		"message": sprintf("navigation target (%v, %v) is inside forbidden zone %v", [target.x, target.y, zone.name]),
		"severity": "critical",
		"action": "navigate",
	}
}`,
	}
}

// carriedLoadPolicy prevents grasping a second object while one is already
// held.
func carriedLoadPolicy() Policy {
	return Policy{
		Name:        "carried-load",
		Description: "Prevents picking while an object is already carried",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety", "manipulation"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package rove.safety.load

import rego.v1

deny contains violation if {
	input.action.kind == "perform"
	input.action.verb == "pick"
	input.action.carrying == true
	violation := {
		"message": "cannot pick while already carrying an object",
		"severity": "error",
		"action": "perform",
	}
}

deny contains violation if {
	input.action.kind == "perform"
	input.action.verb == "place"
	input.action.carrying == false
	violation := {
		"message": "cannot place without a carried object",
		"severity": "error",
		"action": "perform",
	}
}`,
	}
}

// manipulationReachPolicy warns when a manipulation target is beyond the
// arm's nominal reach. The action is still attempted; the warning flags a
// likely manipulation failure.
func manipulationReachPolicy() Policy {
	return Policy{
		Name:        "manipulation-reach",
		Description: "Warns when a manipulation target is beyond nominal arm reach",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"manipulation", "reach"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package rove.safety.reach

import rego.v1

# Nominal arm reach in meters, compared squared because Rego has no sqrt.
max_reach := 1.2

deny contains violation if {
	input.action.kind == "perform"
	target := input.action.target
	robot := input.action.robot
	dx := target.x - robot.x
	dy := target.y - robot.y
	dist_sq := (dx * dx) + (dy * dy)
	dist_sq > max_reach * max_reach
	violation := {
		"message": sprintf("manipulation target (%v, %v) is beyond nominal reach %v m", [target.x, target.y, max_reach]),
		"severity": "warning",
		"action": "perform",
	}
}`,
	}
}
