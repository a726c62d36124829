package plan

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFailureError(t *testing.T) {
	f := NewUnreachable("reachable-for", errors.New("no motion plan found"))

	msg := f.Error()
	if !strings.Contains(msg, "unreachable") {
		t.Fatalf("Expected kind in message, got: %s", msg)
	}
	if !strings.Contains(msg, "no motion plan found") {
		t.Fatalf("Expected cause in message, got: %s", msg)
	}
}

func TestFailureErrorWithGoal(t *testing.T) {
	f := NewPlanFailure("monitor gave up").WithGoal("fetch-object/at-location")

	msg := f.Error()
	if !strings.Contains(msg, "goal=fetch-object/at-location") {
		t.Fatalf("Expected goal context in message, got: %s", msg)
	}
}

func TestFailureIsMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewManipulationFailure("grasp", nil))

	if !errors.Is(err, &Failure{Kind: FailureManipulation}) {
		t.Fatal("Expected errors.Is to match on kind")
	}
	if errors.Is(err, &Failure{Kind: FailureUnreachable}) {
		t.Fatal("Expected errors.Is not to match a different kind")
	}
}

func TestKindOfUnwrapsChains(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewDesignatorUnresolvable("target-location"))

	if got := KindOf(err); got != FailureDesignatorUnresolvable {
		t.Fatalf("Expected designator-unresolvable, got %q", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("Expected empty kind for plain error, got %q", got)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{"unreachable", NewUnreachable("pose", nil), true},
		{"manipulation", NewManipulationFailure("grasp", nil), true},
		{"designator", NewDesignatorUnresolvable("loc"), true},
		{"navigation lost", NewNavigationLostRepeatedly(10), false},
		{"generic", NewPlanFailure("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.recoverable {
				t.Fatalf("Expected recoverable=%v, got %v", tt.recoverable, got)
			}
		})
	}

	if !IsUnreachable(NewUnreachable("pose", nil)) {
		t.Fatal("Expected IsUnreachable to hold")
	}
	if !IsNavigationLost(NewNavigationLostRepeatedly(5)) {
		t.Fatal("Expected IsNavigationLost to hold")
	}
}

func TestNavigationLostMessageIncludesCount(t *testing.T) {
	f := NewNavigationLostRepeatedly(10)

	if f.Count != 10 {
		t.Fatalf("Expected count 10, got %d", f.Count)
	}
	if !strings.Contains(f.Error(), "navigation lost 10 times") {
		t.Fatalf("Expected count in message, got: %s", f.Error())
	}
}

func TestAsFailure(t *testing.T) {
	f, ok := AsFailure(fmt.Errorf("w: %w", NewUnreachable("pose", nil)))
	if !ok {
		t.Fatal("Expected AsFailure to find the classified failure")
	}
	if f.PoseKind != "pose" {
		t.Fatalf("Expected pose kind preserved, got %q", f.PoseKind)
	}

	if _, ok := AsFailure(errors.New("plain")); ok {
		t.Fatal("Expected AsFailure to reject a plain error")
	}
}
