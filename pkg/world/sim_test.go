package world

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openrove/openrove/pkg/plan"
)

func TestSimNavigateMovesAndNotifies(t *testing.T) {
	sim := NewSim()

	var mu sync.Mutex
	var updates []Pose
	remove := sim.OnPoseChanged(func(p Pose) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})
	defer remove()

	target := Pose{X: 2, Y: 1}
	if err := sim.Navigate(context.Background(), target); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := sim.RobotPose(); got != target {
		t.Fatalf("Expected robot at %+v, got %+v", target, got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 1 || updates[0] != target {
		t.Fatalf("Expected one pose notification with the target, got %v", updates)
	}
}

func TestSimNavigateConsumesQueuedFailures(t *testing.T) {
	sim := NewSim()
	boom := plan.NewUnreachable("pose", errors.New("blocked"))
	sim.FailNavigate(boom)

	err := sim.Navigate(context.Background(), Pose{X: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the queued failure, got: %v", err)
	}
	if got := sim.RobotPose(); got != (Pose{}) {
		t.Fatalf("Expected robot not to move on failure, got %+v", got)
	}

	// The queue is consumed; the next navigation succeeds.
	if err := sim.Navigate(context.Background(), Pose{X: 1}); err != nil {
		t.Fatalf("Expected no error after queue drained, got: %v", err)
	}
}

func TestSimNavigateCancelledDuringDelay(t *testing.T) {
	sim := NewSim()
	sim.SetNavigateDelay(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sim.Navigate(ctx, Pose{X: 3})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Expected context.Canceled, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected cancellation to abort the motion")
	}
	if got := sim.RobotPose(); got != (Pose{}) {
		t.Fatalf("Expected robot not to move on cancelled motion, got %+v", got)
	}
}

func TestSimUnsubscribeStopsNotifications(t *testing.T) {
	sim := NewSim()

	var mu sync.Mutex
	count := 0
	remove := sim.OnPoseChanged(func(Pose) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	sim.MoveTo(Pose{X: 1})
	remove()
	sim.MoveTo(Pose{X: 2})

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("Expected one notification before unsubscribe, got %d", count)
	}
}

func TestSimPerceiveMatchesProps(t *testing.T) {
	sim := NewSim()
	sim.PlaceObject(Object{ID: "mug-2", Type: "mug", Pose: Pose{X: 2}})
	sim.PlaceObject(Object{ID: "mug-1", Type: "mug", Pose: Pose{X: 1}})
	sim.PlaceObject(Object{ID: "plate-1", Type: "plate"})

	obj, err := sim.Perceive(context.Background(), map[string]interface{}{"type": "mug"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if obj.ID != "mug-1" {
		t.Fatalf("Expected stable lowest-ID match mug-1, got %q", obj.ID)
	}

	obj, err = sim.Perceive(context.Background(), map[string]interface{}{"id": "plate-1"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if obj.Type != "plate" {
		t.Fatalf("Expected plate, got %q", obj.Type)
	}
}

func TestSimPerceiveNoMatchFailsUnresolvable(t *testing.T) {
	sim := NewSim()

	_, err := sim.Perceive(context.Background(), map[string]interface{}{"type": "bowl"})
	if !plan.IsDesignatorUnresolvable(err) {
		t.Fatalf("Expected designator-unresolvable, got: %v", err)
	}
}

func TestSimPerformMutatesScene(t *testing.T) {
	sim := NewSim()
	sim.PlaceObject(Object{ID: "mug-1", Type: "mug", Pose: Pose{X: 1}})

	pick := Action{Verb: "pick", ObjectID: "mug-1"}
	if err := sim.Perform(context.Background(), pick); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := sim.Perceive(context.Background(), map[string]interface{}{"id": "mug-1"}); err == nil {
		t.Fatal("Expected picked object to leave the scene")
	}

	place := Action{Verb: "place", ObjectID: "mug-1", Target: Pose{X: 5}}
	if err := sim.Perform(context.Background(), place); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	obj, err := sim.Perceive(context.Background(), map[string]interface{}{"id": "mug-1"})
	if err != nil {
		t.Fatalf("Expected placed object back in the scene, got: %v", err)
	}
	if obj.Pose.X != 5 {
		t.Fatalf("Expected object at the place target, got %+v", obj.Pose)
	}

	if got := len(sim.Performed()); got != 2 {
		t.Fatalf("Expected 2 recorded actions, got %d", got)
	}
}

func TestSimPerformConsumesQueuedFailures(t *testing.T) {
	sim := NewSim()
	boom := plan.NewManipulationFailure("grasp", nil)
	sim.FailPerform(boom)

	err := sim.Perform(context.Background(), Action{Verb: "pick", ObjectID: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the queued failure, got: %v", err)
	}
	if got := len(sim.Performed()); got != 0 {
		t.Fatalf("Expected failed action not to be recorded, got %d", got)
	}
}

func TestSimSinkRecordsPublishes(t *testing.T) {
	sim := NewSim()

	sim.PublishObjectPose("mug-1", Pose{X: 1})
	sim.PublishObjectPose("mug-1", Pose{X: 2})
	sim.PublishObjectRemoved("mug-1")

	poses := sim.PublishedPoses()
	if poses["mug-1"].X != 2 {
		t.Fatalf("Expected latest published pose, got %+v", poses["mug-1"])
	}
	removed := sim.RemovedObjects()
	if len(removed) != 1 || removed[0] != "mug-1" {
		t.Fatalf("Expected one removal for mug-1, got %v", removed)
	}
}

func TestPoseNear(t *testing.T) {
	a := Pose{X: 1, Y: 1}
	b := Pose{X: 1.1, Y: 1}

	if !a.Near(b, 0.15) {
		t.Fatal("Expected poses within tolerance to be near")
	}
	if a.Near(Pose{X: 5}, 0.15) {
		t.Fatal("Expected distant poses not to be near")
	}
}
