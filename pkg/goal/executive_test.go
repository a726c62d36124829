package goal

import (
	"context"
	"sync"
	"testing"

	"github.com/openrove/openrove/pkg/desig"
	"github.com/openrove/openrove/pkg/world"
)

// newTestExecutive builds an executive backed by the simulated world, with
// optional mutations applied to the options before construction.
func newTestExecutive(t *testing.T, sim *world.Sim, mutate ...func(*Options)) *Executive {
	t.Helper()
	opts := Options{
		PoseFeed:  sim,
		Navigator: sim,
		Perceptor: sim,
		Performer: sim,
		Sink:      sim,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	exec, err := NewExecutive(opts)
	if err != nil {
		t.Fatalf("NewExecutive failed: %v", err)
	}
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

// countingNavigator wraps a navigator and counts its calls.
type countingNavigator struct {
	mu    sync.Mutex
	inner world.Navigator
	calls int
}

func (n *countingNavigator) Navigate(ctx context.Context, target world.Pose) error {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	return n.inner.Navigate(ctx, target)
}

func (n *countingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// stillNavigator reports success without moving the base, so satisfaction
// can only come from pose events injected by the test.
type stillNavigator struct{}

func (stillNavigator) Navigate(ctx context.Context, target world.Pose) error { return nil }

func staticLocation(name string, poses ...world.Pose) *desig.Location {
	return desig.NewLocation(name, nil, desig.NewStatic(poses...))
}

func TestNewExecutiveRequiresCoreCollaborators(t *testing.T) {
	sim := world.NewSim()

	if _, err := NewExecutive(Options{Navigator: sim}); err == nil {
		t.Fatal("Expected an error without a pose feed")
	}
	if _, err := NewExecutive(Options{PoseFeed: sim}); err == nil {
		t.Fatal("Expected an error without a navigator")
	}
}

func TestExecutivePoseTracksFeed(t *testing.T) {
	sim := world.NewSim()
	exec := newTestExecutive(t, sim)

	p := world.Pose{X: 1, Y: 2, Yaw: 0.5}
	sim.MoveTo(p)
	if got := exec.Pose().Value(); got != p {
		t.Fatalf("Expected pose %v, got %v", p, got)
	}
}

func TestExecutiveCloseStopsTracking(t *testing.T) {
	sim := world.NewSim()
	exec, err := NewExecutive(Options{PoseFeed: sim, Navigator: sim})
	if err != nil {
		t.Fatalf("NewExecutive failed: %v", err)
	}

	exec.Close()
	sim.MoveTo(world.Pose{X: 3})
	if got := exec.Pose().Value(); got.X != 0 {
		t.Fatalf("Expected pose updates to stop after Close, got %v", got)
	}
}
