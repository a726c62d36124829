package mission

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, m *Mission) *Graph {
	t.Helper()
	g, err := BuildGraph(m)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	return g
}

func levelEquals(level []string, want ...string) bool {
	if len(level) != len(want) {
		return false
	}
	seen := make(map[string]bool, len(level))
	for _, id := range level {
		seen[id] = true
	}
	for _, id := range want {
		if !seen[id] {
			return false
		}
	}
	return true
}

func TestBuildGraphSingleStep(t *testing.T) {
	g := mustBuild(t, makeMission(makeStep("a")))

	if g.Depth() != 1 {
		t.Errorf("Depth = %d, want 1", g.Depth())
	}
	if !levelEquals(g.Levels()[0], "a") {
		t.Errorf("level 0 = %v, want [a]", g.Levels()[0])
	}
	if g.Step("a") == nil {
		t.Error("Step(a) returned nil")
	}
	if g.Step("ghost") != nil {
		t.Error("Step(ghost) returned a step")
	}
}

func TestBuildGraphChain(t *testing.T) {
	g := mustBuild(t, makeMission(
		makeStep("a"),
		makeStep("b", requires("a")),
		makeStep("c", requires("b")),
	))

	if g.Depth() != 3 {
		t.Fatalf("Depth = %d, want 3", g.Depth())
	}
	for i, want := range []string{"a", "b", "c"} {
		if !levelEquals(g.Levels()[i], want) {
			t.Errorf("level %d = %v, want [%s]", i, g.Levels()[i], want)
		}
	}
}

func TestBuildGraphDiamond(t *testing.T) {
	g := mustBuild(t, makeMission(
		makeStep("a"),
		makeStep("b", requires("a")),
		makeStep("c", requires("a")),
		makeStep("d", requires("b", "c")),
	))

	if g.Depth() != 3 {
		t.Fatalf("Depth = %d, want 3", g.Depth())
	}
	if !levelEquals(g.Levels()[0], "a") {
		t.Errorf("level 0 = %v, want [a]", g.Levels()[0])
	}
	if !levelEquals(g.Levels()[1], "b", "c") {
		t.Errorf("level 1 = %v, want [b c]", g.Levels()[1])
	}
	if !levelEquals(g.Levels()[2], "d") {
		t.Errorf("level 2 = %v, want [d]", g.Levels()[2])
	}
}

func TestBuildGraphIndependentStepsShareLevel(t *testing.T) {
	g := mustBuild(t, makeMission(makeStep("a"), makeStep("b"), makeStep("c")))

	if g.Depth() != 1 {
		t.Fatalf("Depth = %d, want 1", g.Depth())
	}
	if !levelEquals(g.Levels()[0], "a", "b", "c") {
		t.Errorf("level 0 = %v, want [a b c]", g.Levels()[0])
	}
}

func TestBuildGraphAfterOrdersSteps(t *testing.T) {
	g := mustBuild(t, makeMission(
		makeStep("a"),
		makeStep("b", after("a")),
	))

	if g.Depth() != 2 {
		t.Fatalf("Depth = %d, want 2", g.Depth())
	}
	if !levelEquals(g.Levels()[1], "b") {
		t.Errorf("level 1 = %v, want [b]", g.Levels()[1])
	}
}

func TestBuildGraphMixedConstraints(t *testing.T) {
	g := mustBuild(t, makeMission(
		makeStep("a"),
		makeStep("b", requires("a")),
		makeStep("c", after("a")),
		makeStep("d", requires("b"), after("c")),
	))

	if g.Depth() != 3 {
		t.Fatalf("Depth = %d, want 3", g.Depth())
	}
	if !levelEquals(g.Levels()[1], "b", "c") {
		t.Errorf("level 1 = %v, want [b c]", g.Levels()[1])
	}
	if !levelEquals(g.Levels()[2], "d") {
		t.Errorf("level 2 = %v, want [d]", g.Levels()[2])
	}
}

func TestBuildGraphCycle(t *testing.T) {
	_, err := BuildGraph(makeMission(
		makeStep("a", requires("c")),
		makeStep("b", requires("a")),
		makeStep("c", requires("b")),
	))
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !strings.Contains(err.Error(), "circular dependency detected") {
		t.Errorf("error %q does not name the cycle", err)
	}
	if !strings.Contains(err.Error(), " -> ") {
		t.Errorf("error %q does not show the cycle path", err)
	}
}

func TestBuildGraphDuplicateID(t *testing.T) {
	_, err := BuildGraph(makeMission(makeStep("a"), makeStep("a")))
	if err == nil || !strings.Contains(err.Error(), "duplicate step ID") {
		t.Fatalf("expected duplicate ID error, got %v", err)
	}
}

func TestBuildGraphUnknownReference(t *testing.T) {
	_, err := BuildGraph(makeMission(makeStep("a", requires("ghost"))))
	if err == nil || !strings.Contains(err.Error(), "unknown step ghost") {
		t.Fatalf("expected unknown step error, got %v", err)
	}
}

func TestBuildGraphSelfDependency(t *testing.T) {
	_, err := BuildGraph(makeMission(makeStep("a", after("a"))))
	if err == nil || !strings.Contains(err.Error(), "depends on itself") {
		t.Fatalf("expected self dependency error, got %v", err)
	}
}

func TestGraphToDOT(t *testing.T) {
	g := mustBuild(t, makeMission(
		makeStep("a"),
		makeStep("b", fetchStep, requires("a")),
		makeStep("c", after("b")),
	))

	dot := g.ToDOT()
	for _, want := range []string{
		"digraph mission {",
		`label="test"`,
		"subgraph cluster_level_0",
		"subgraph cluster_level_1",
		"subgraph cluster_level_2",
		`"a" -> "b";`,
		`"b" -> "c" [style=dashed];`,
		"lightblue",
		"lightgreen",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}
