package mission

import (
	"fmt"
	"strings"
)

// Graph orders mission steps into execution levels. Steps within a level
// have no ordering constraints between each other and may run
// concurrently; a level only starts once the previous one has finished.
type Graph struct {
	name       string
	steps      map[string]*Step
	order      []string
	dependents map[string][]string
	edges      []edge
	indegree   map[string]int
	levels     [][]string
}

// edge records one dependency for rendering. Soft edges come from After
// and only order execution; hard edges come from Requires and also gate
// on the dependency succeeding.
type edge struct {
	from string
	to   string
	soft bool
}

// BuildGraph checks step references and levels the mission's steps. It
// returns an error on duplicate IDs, unknown references, or dependency
// cycles.
func BuildGraph(m *Mission) (*Graph, error) {
	g := &Graph{
		name:       m.Name,
		steps:      make(map[string]*Step, len(m.Steps)),
		dependents: make(map[string][]string, len(m.Steps)),
		indegree:   make(map[string]int, len(m.Steps)),
	}

	for i := range m.Steps {
		step := &m.Steps[i]
		if step.ID == "" {
			return nil, fmt.Errorf("step %d has no ID", i)
		}
		if _, exists := g.steps[step.ID]; exists {
			return nil, fmt.Errorf("duplicate step ID: %s", step.ID)
		}
		g.steps[step.ID] = step
		g.order = append(g.order, step.ID)
		g.indegree[step.ID] = 0
	}

	for _, id := range g.order {
		step := g.steps[id]
		for _, dep := range step.Requires {
			if err := g.addEdge(dep, id, false); err != nil {
				return nil, err
			}
		}
		for _, dep := range step.After {
			if err := g.addEdge(dep, id, true); err != nil {
				return nil, err
			}
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	if err := g.computeLevels(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) addEdge(from, to string, soft bool) error {
	if from == to {
		return fmt.Errorf("step %s depends on itself", to)
	}
	if _, ok := g.steps[from]; !ok {
		return fmt.Errorf("step %s depends on unknown step %s", to, from)
	}
	g.dependents[from] = append(g.dependents[from], to)
	g.indegree[to]++
	g.edges = append(g.edges, edge{from: from, to: to, soft: soft})
	return nil
}

// detectCycles runs a depth-first search and reports the first cycle it
// finds as a readable path.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.order))

	var path []string
	var visit func(id string) error
	visit = func(id string) error {
		state[id] = visiting
		path = append(path, id)
		for _, next := range g.dependents[id] {
			switch state[next] {
			case visiting:
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), next)
				return fmt.Errorf("circular dependency detected: %s", strings.Join(cycle, " -> "))
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = visited
		return nil
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeLevels groups steps by Kahn's algorithm. Level 0 holds steps
// with no dependencies, level N+1 holds steps whose dependencies all sit
// at level N or earlier. Step declaration order keeps the result stable.
func (g *Graph) computeLevels() error {
	indegree := make(map[string]int, len(g.order))
	for id, deg := range g.indegree {
		indegree[id] = deg
	}

	var current []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			current = append(current, id)
		}
	}

	levelled := 0
	for len(current) > 0 {
		g.levels = append(g.levels, current)
		levelled += len(current)
		var next []string
		for _, id := range current {
			for _, dep := range g.dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		current = next
	}

	if levelled != len(g.order) {
		return fmt.Errorf("failed to level %d steps, dependency cycle suspected", len(g.order)-levelled)
	}
	return nil
}

// Levels returns the step IDs grouped by execution level.
func (g *Graph) Levels() [][]string {
	return g.levels
}

// Depth returns the number of execution levels.
func (g *Graph) Depth() int {
	return len(g.levels)
}

// Step returns the step with the given ID, or nil.
func (g *Graph) Step(id string) *Step {
	return g.steps[id]
}

// ToDOT renders the graph in Graphviz DOT format with one cluster per
// execution level. Requires edges are solid, After edges dashed.
func (g *Graph) ToDOT() string {
	var b strings.Builder
	b.WriteString("digraph mission {\n")
	b.WriteString("  rankdir=TB;\n")
	fmt.Fprintf(&b, "  label=%q;\n", g.name)
	b.WriteString("  node [shape=box, style=\"rounded,filled\"];\n\n")

	for i, level := range g.levels {
		fmt.Fprintf(&b, "  subgraph cluster_level_%d {\n", i)
		fmt.Fprintf(&b, "    label=\"level %d\";\n", i)
		b.WriteString("    style=dashed;\n")
		for _, id := range level {
			step := g.steps[id]
			fmt.Fprintf(&b, "    %q [label=\"%s\\n%s\", fillcolor=%q];\n",
				id, id, step.Goal, goalColor(step.Goal))
		}
		b.WriteString("  }\n\n")
	}

	for _, e := range g.edges {
		if e.soft {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed];\n", e.from, e.to)
		} else {
			fmt.Fprintf(&b, "  %q -> %q;\n", e.from, e.to)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func goalColor(goal GoalType) string {
	switch goal {
	case GoalAtLocation:
		return "lightblue"
	case GoalFetchObject:
		return "lightgreen"
	default:
		return "lightgray"
	}
}
