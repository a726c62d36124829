package journal

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/telemetry"
)

// newTestRecorder creates a recorder over an in-memory store
func newTestRecorder(t *testing.T) (*Recorder, *SQLiteStore) {
	t.Helper()

	store := setupTestStore(t)
	t.Cleanup(func() { store.Close() })

	recorder, err := NewRecorder(store, nil)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	return recorder, store
}

// waitFor polls until the condition holds or the deadline passes
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestRecorderEpisodeLifecycle tests opening and closing an episode with a
// task tree
func TestRecorderEpisodeLifecycle(t *testing.T) {
	recorder, store := newTestRecorder(t)
	ctx := context.Background()

	episode, err := recorder.Begin(ctx, "fetch-mug", map[string]interface{}{"operator": "cli"})
	if err != nil {
		t.Fatalf("failed to begin episode: %v", err)
	}

	if recorder.EpisodeID() != episode.ID {
		t.Errorf("expected episode ID %s in progress, got %s", episode.ID, recorder.EpisodeID())
	}
	if episode.Metadata != `{"operator":"cli"}` {
		t.Errorf("unexpected metadata blob: %s", episode.Metadata)
	}

	created, err := store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("failed to get episode: %v", err)
	}
	if created.Status != EpisodeStatusRunning {
		t.Errorf("expected status %s, got %s", EpisodeStatusRunning, created.Status)
	}

	// Execute a small task tree
	tree := plan.NewTree()
	rootCtx, finishRoot := tree.Begin(ctx, "fetch-object", map[string]interface{}{"object": "cup-1"})
	_, finishChild := tree.Begin(rootCtx, "at-location", nil)
	finishChild(nil)
	finishRoot(nil)

	if err := recorder.Finish(ctx, tree, nil); err != nil {
		t.Fatalf("failed to finish episode: %v", err)
	}

	if recorder.EpisodeID() != "" {
		t.Errorf("expected no episode in progress, got %s", recorder.EpisodeID())
	}

	finished, err := store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("failed to get finished episode: %v", err)
	}
	if finished.Status != EpisodeStatusSucceeded {
		t.Errorf("expected status %s, got %s", EpisodeStatusSucceeded, finished.Status)
	}
	if finished.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	tasks, err := store.ListTasksByEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Path != "fetch-object" {
		t.Errorf("expected root path fetch-object, got %s", tasks[0].Path)
	}
	if tasks[1].Path != "fetch-object/at-location" {
		t.Errorf("expected child path fetch-object/at-location, got %s", tasks[1].Path)
	}
	if tasks[0].Status != TaskStatusSucceeded || tasks[1].Status != TaskStatusSucceeded {
		t.Errorf("expected succeeded tasks, got %s and %s", tasks[0].Status, tasks[1].Status)
	}
	if !strings.Contains(tasks[0].Params, "cup-1") {
		t.Errorf("expected root params to carry the object, got %s", tasks[0].Params)
	}
}

// TestRecorderFinishFailure tests failure classification on finish
func TestRecorderFinishFailure(t *testing.T) {
	recorder, store := newTestRecorder(t)
	ctx := context.Background()

	episode, err := recorder.Begin(ctx, "fetch-mug", nil)
	if err != nil {
		t.Fatalf("failed to begin episode: %v", err)
	}

	cause := fmt.Errorf("pose blocked")
	if err := recorder.Finish(ctx, nil, plan.NewUnreachable("location", cause)); err != nil {
		t.Fatalf("failed to finish episode: %v", err)
	}

	finished, err := store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("failed to get episode: %v", err)
	}
	if finished.Status != EpisodeStatusFailed {
		t.Errorf("expected status %s, got %s", EpisodeStatusFailed, finished.Status)
	}
	if finished.FailureKind == nil || *finished.FailureKind != string(plan.FailureUnreachable) {
		t.Errorf("expected failure kind %s, got %v", plan.FailureUnreachable, finished.FailureKind)
	}
	if finished.Error == nil || *finished.Error == "" {
		t.Error("expected error message to be recorded")
	}
}

// TestRecorderFinishAborted tests that cancellation records an abort
func TestRecorderFinishAborted(t *testing.T) {
	recorder, store := newTestRecorder(t)
	ctx := context.Background()

	episode, err := recorder.Begin(ctx, "patrol", nil)
	if err != nil {
		t.Fatalf("failed to begin episode: %v", err)
	}

	if err := recorder.Finish(ctx, nil, fmt.Errorf("navigate: %w", context.Canceled)); err != nil {
		t.Fatalf("failed to finish episode: %v", err)
	}

	finished, err := store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("failed to get episode: %v", err)
	}
	if finished.Status != EpisodeStatusAborted {
		t.Errorf("expected status %s, got %s", EpisodeStatusAborted, finished.Status)
	}
	if finished.FailureKind != nil {
		t.Errorf("expected no failure kind for an abort, got %v", *finished.FailureKind)
	}
}

// TestRecorderFinishWithoutBegin tests finishing with no episode open
func TestRecorderFinishWithoutBegin(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	if err := recorder.Finish(context.Background(), nil, nil); err == nil {
		t.Error("expected error when finishing without an episode")
	}
}

// TestRecorderEventMapping tests the event to journal row mapping
func TestRecorderEventMapping(t *testing.T) {
	recorder, store := newTestRecorder(t)
	ctx := context.Background()

	episode, err := recorder.Begin(ctx, "fetch-mug", nil)
	if err != nil {
		t.Fatalf("failed to begin episode: %v", err)
	}

	recorder.record(telemetry.Event{
		Type:     telemetry.EventTypeRetryAttempted,
		Source:   "executive",
		GoalID:   "goal-7",
		TaskPath: "fetch-object/at-location/navigate",
		Message:  "Retry 2 after unreachable failure",
		Level:    telemetry.EventLevelWarning,
		Data: map[string]interface{}{
			"kind":    "unreachable",
			"attempt": 2,
		},
	})

	events, err := store.ListEvents(ctx, &episode.ID, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.Type != telemetry.EventTypeRetryAttempted {
		t.Errorf("expected type %s, got %s", telemetry.EventTypeRetryAttempted, event.Type)
	}
	if event.Level != EventLevelWarning {
		t.Errorf("expected level %s, got %s", EventLevelWarning, event.Level)
	}
	if event.TaskPath == nil || *event.TaskPath != "fetch-object/at-location/navigate" {
		t.Errorf("expected task path to be recorded, got %v", event.TaskPath)
	}
	if event.Details == nil {
		t.Fatal("expected details to be recorded")
	}
	if !strings.Contains(*event.Details, `"goal_id":"goal-7"`) {
		t.Errorf("expected details to carry the goal ID, got %s", *event.Details)
	}
	if !strings.Contains(*event.Details, `"kind":"unreachable"`) {
		t.Errorf("expected details to carry the failure kind, got %s", *event.Details)
	}
}

// TestRecorderPublisherIntegration tests capturing the live event stream
func TestRecorderPublisherIntegration(t *testing.T) {
	recorder, store := newTestRecorder(t)
	ctx := context.Background()

	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	defer publisher.Shutdown(context.Background())

	recorder.Attach(publisher)

	episode, err := recorder.Begin(ctx, "fetch-mug", nil)
	if err != nil {
		t.Fatalf("failed to begin episode: %v", err)
	}

	// Subscribers run on their own goroutines, so poll until the writes land
	if err := publisher.PublishNavigationStarted("goal-1", "(4.0, 2.0)"); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	if err := publisher.PublishObjectSeen("cup-1", "mug"); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	waitFor(t, func() bool {
		events, err := store.ListEvents(ctx, &episode.ID, nil, nil, 10, 0)
		return err == nil && len(events) == 2
	}, "events were not journaled")

	waitFor(t, func() bool {
		obj, err := store.GetObject(ctx, "cup-1")
		return err == nil && obj.ObjectType == "mug" && !obj.Removed
	}, "object sighting was not journaled")

	if err := publisher.PublishObjectRemoved("cup-1"); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	waitFor(t, func() bool {
		obj, err := store.GetObject(ctx, "cup-1")
		return err == nil && obj.Removed
	}, "object removal was not journaled")

	obj, err := store.GetObject(ctx, "cup-1")
	if err != nil {
		t.Fatalf("failed to get object: %v", err)
	}
	if obj.LastEpisodeID == nil || *obj.LastEpisodeID != episode.ID {
		t.Errorf("expected object to reference episode %s, got %v", episode.ID, obj.LastEpisodeID)
	}
}
