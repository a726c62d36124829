package plan

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus tracks the lifecycle of one task-tree node.
type TaskStatus string

const (
	// TaskActive indicates the task is currently executing.
	TaskActive TaskStatus = "active"

	// TaskSucceeded indicates the task returned without failure.
	TaskSucceeded TaskStatus = "succeeded"

	// TaskFailed indicates the task returned a failure.
	TaskFailed TaskStatus = "failed"
)

// Task is one node of the goal invocation tree: which goal is executing,
// with which parameters, under which parent. Thin bookkeeping for
// introspection, logging and the journal.
type Task struct {
	// ID is the unique identifier of this task node.
	ID string `json:"id"`

	// Name is the goal or step name, e.g. "at-location".
	Name string `json:"name"`

	// Params are the goal parameters as given at entry.
	Params map[string]interface{} `json:"params,omitempty"`

	// Parent is the index of the parent node in the tree arena, -1 for a
	// root task.
	Parent int `json:"parent"`

	// Status is the node's lifecycle state.
	Status TaskStatus `json:"status"`

	// FailureKind records the failure kind for failed tasks.
	FailureKind FailureKind `json:"failure_kind,omitempty"`

	// StartedAt is when the task was entered.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the task finished, zero while active.
	EndedAt time.Time `json:"ended_at,omitempty"`
}

// Tree holds the task nodes of one goal invocation as an arena; nodes refer
// to their parents by index. A Tree is safe for concurrent use by the
// branches of the invocation it belongs to.
type Tree struct {
	mu    sync.Mutex
	nodes []Task
}

type taskIndexKey struct{}

// NewTree creates an empty task tree for one top-level goal invocation.
func NewTree() *Tree {
	return &Tree{}
}

// Begin pushes a task node for the named goal, parented to the current task
// in ctx, and returns a context carrying the new node plus a finish
// function. Finish records the final status from err; call it exactly once
// at goal exit, usually via defer:
//
//	ctx, finish := tree.Begin(ctx, "at-location", params)
//	defer func() { finish(retErr) }()
func (t *Tree) Begin(ctx context.Context, name string, params map[string]interface{}) (context.Context, func(error)) {
	parent := -1
	if idx, ok := ctx.Value(taskIndexKey{}).(int); ok {
		parent = idx
	}

	t.mu.Lock()
	index := len(t.nodes)
	t.nodes = append(t.nodes, Task{
		ID:        uuid.New().String(),
		Name:      name,
		Params:    params,
		Parent:    parent,
		Status:    TaskActive,
		StartedAt: time.Now(),
	})
	t.mu.Unlock()

	finish := func(err error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		node := &t.nodes[index]
		if !node.EndedAt.IsZero() {
			return
		}
		node.EndedAt = time.Now()
		if err != nil {
			node.Status = TaskFailed
			node.FailureKind = KindOf(err)
		} else {
			node.Status = TaskSucceeded
		}
	}

	return context.WithValue(ctx, taskIndexKey{}, index), finish
}

// Current returns a snapshot of the task the context is executing, and
// false when ctx carries no task.
func (t *Tree) Current(ctx context.Context) (Task, bool) {
	idx, ok := ctx.Value(taskIndexKey{}).(int)
	if !ok {
		return Task{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.nodes) {
		return Task{}, false
	}
	return t.nodes[idx], true
}

// Path returns the slash-joined names from the root to the context's task,
// e.g. "fetch-object/at-location/navigate". Empty when ctx carries no task.
func (t *Tree) Path(ctx context.Context) string {
	idx, ok := ctx.Value(taskIndexKey{}).(int)
	if !ok {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var names []string
	for idx >= 0 && idx < len(t.nodes) {
		names = append(names, t.nodes[idx].Name)
		idx = t.nodes[idx].Parent
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// Snapshot returns a copy of every node in creation order.
func (t *Tree) Snapshot() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	nodes := make([]Task, len(t.nodes))
	copy(nodes, t.nodes)
	return nodes
}
