package commands

import (
	"strings"
	"testing"

	"github.com/openrove/openrove/pkg/mission"
)

func TestParseSimObject(t *testing.T) {
	obj, err := parseSimObject("id=mug-1,type=mug,x=2.1,y=1.4,z=0.8,yaw=3.1")
	if err != nil {
		t.Fatalf("parseSimObject failed: %v", err)
	}
	if obj.ID != "mug-1" || obj.Type != "mug" {
		t.Errorf("Expected id mug-1 type mug, got %q %q", obj.ID, obj.Type)
	}
	if obj.Pose.X != 2.1 || obj.Pose.Y != 1.4 || obj.Pose.Z != 0.8 || obj.Pose.Yaw != 3.1 {
		t.Errorf("Unexpected pose: %+v", obj.Pose)
	}
}

func TestParseSimObjectErrors(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want string
	}{
		{"missing id", "type=mug,x=1", "id and type"},
		{"missing type", "id=mug-1", "id and type"},
		{"bad pair", "id=mug-1,type", "key=value"},
		{"unknown key", "id=mug-1,type=mug,color=red", "unknown --place key"},
		{"bad coordinate", "id=mug-1,type=mug,x=wide", "coordinate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSimObject(tt.spec)
			if err == nil {
				t.Fatalf("Expected error for %q", tt.spec)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDemoMissionIsValid(t *testing.T) {
	m := demoMission()
	if err := m.Validate(); err != nil {
		t.Fatalf("Demo mission invalid: %v", err)
	}
	if _, err := mission.BuildGraph(m); err != nil {
		t.Fatalf("Demo mission graph failed: %v", err)
	}
}
