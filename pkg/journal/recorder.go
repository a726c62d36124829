package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/telemetry"
)

// recordTimeout bounds each journal write triggered by an event.
const recordTimeout = 5 * time.Second

// Recorder journals telemetry events, task trees and object sightings under
// the episode opened by Begin. Attach it to an EventPublisher to capture the
// live event stream; writes that fail are logged and never propagate to the
// publishing goal.
type Recorder struct {
	store Store
	log   *telemetry.Logger

	mu        sync.Mutex
	episodeID string
}

// NewRecorder creates a recorder writing to the given store.
func NewRecorder(store Store, log *telemetry.Logger) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if log == nil {
		logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
			Level:  "error",
			Format: "json",
			Output: "stderr",
		})
		if err != nil {
			return nil, fmt.Errorf("default logger: %w", err)
		}
		log = logger
	}

	return &Recorder{
		store: store,
		log:   log.NewComponentLogger("journal"),
	}, nil
}

// Attach subscribes the recorder to the publisher's event stream.
func (r *Recorder) Attach(publisher *telemetry.EventPublisher) {
	publisher.Subscribe(r.record, nil)
}

// EpisodeID returns the ID of the episode in progress, empty when none.
func (r *Recorder) EpisodeID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.episodeID
}

// Begin opens a new episode for the named mission and makes it the target of
// subsequent event records.
func (r *Recorder) Begin(ctx context.Context, mission string, metadata map[string]interface{}) (*Episode, error) {
	blob := "{}"
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		blob = string(raw)
	}

	now := time.Now()
	episode := &Episode{
		ID:        uuid.New().String(),
		Mission:   mission,
		Status:    EpisodeStatusRunning,
		StartedAt: now,
		Metadata:  blob,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.CreateEpisode(ctx, episode); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.episodeID = episode.ID
	r.mu.Unlock()

	return episode, nil
}

// Finish closes the episode in progress, persisting the task tree and the
// final status derived from runErr. A nil runErr records success, context
// cancellation records an abort, everything else records a failure with its
// failure kind when runErr carries one.
func (r *Recorder) Finish(ctx context.Context, tree *plan.Tree, runErr error) error {
	r.mu.Lock()
	id := r.episodeID
	r.episodeID = ""
	r.mu.Unlock()

	if id == "" {
		return fmt.Errorf("no episode in progress")
	}

	if tree != nil {
		if err := r.saveTasks(ctx, id, tree.Snapshot()); err != nil {
			r.log.WithError(err).Warn("Failed to journal task tree")
		}
	}

	status := EpisodeStatusSucceeded
	var failureKind, errMsg *string
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		status = EpisodeStatusAborted
		msg := runErr.Error()
		errMsg = &msg
	default:
		status = EpisodeStatusFailed
		msg := runErr.Error()
		errMsg = &msg
		if kind := plan.KindOf(runErr); kind != "" {
			k := string(kind)
			failureKind = &k
		}
	}

	return r.store.UpdateEpisodeStatus(ctx, id, status, failureKind, errMsg)
}

// record journals one published event. Runs on the publisher's delivery
// goroutine, so failures are logged rather than returned.
func (r *Recorder) record(event telemetry.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.store.AppendEvent(ctx, r.toRecord(event)); err != nil {
		r.log.WithError(err).Warn("Failed to journal event")
	}

	// Keep the object catalog current from perception events
	switch event.Type {
	case telemetry.EventTypeObjectSeen:
		objectType, _ := event.Data["object_type"].(string)
		r.upsertObject(ctx, event.ObjectID, func(obj *ObjectRecord) {
			if objectType != "" {
				obj.ObjectType = objectType
			}
			obj.Removed = false
		})
	case telemetry.EventTypeObjectRemoved:
		r.upsertObject(ctx, event.ObjectID, func(obj *ObjectRecord) {
			obj.Removed = true
		})
	}
}

// toRecord maps a published event onto its journal row.
func (r *Recorder) toRecord(event telemetry.Event) *EventRecord {
	rec := &EventRecord{
		Type:      event.Type,
		Level:     EventLevel(event.Level),
		Message:   event.Message,
		Timestamp: event.Timestamp,
	}
	if rec.Level == "" {
		rec.Level = EventLevelInfo
	}
	if id := r.EpisodeID(); id != "" {
		rec.EpisodeID = &id
	}
	if event.TaskPath != "" {
		path := event.TaskPath
		rec.TaskPath = &path
	}

	details := map[string]interface{}{}
	for k, v := range event.Data {
		details[k] = v
	}
	if event.GoalID != "" {
		details["goal_id"] = event.GoalID
	}
	if event.ObjectID != "" {
		details["object_id"] = event.ObjectID
	}
	if event.Source != "" {
		details["source"] = event.Source
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			blob := string(raw)
			rec.Details = &blob
		}
	}

	return rec
}

// upsertObject merges a mutation into the object's journal row, creating the
// row on first sight. The store upsert resolves concurrent first sightings by
// object ID.
func (r *Recorder) upsertObject(ctx context.Context, objectID string, mutate func(*ObjectRecord)) {
	if objectID == "" {
		return
	}

	now := time.Now()
	obj, err := r.store.GetObject(ctx, objectID)
	if err != nil {
		obj = &ObjectRecord{
			ID:        uuid.New().String(),
			ObjectID:  objectID,
			Pose:      "{}",
			CreatedAt: now,
		}
	}
	obj.LastSeen = now
	obj.UpdatedAt = now
	if id := r.EpisodeID(); id != "" {
		obj.LastEpisodeID = &id
	}
	mutate(obj)

	if err := r.store.UpsertObject(ctx, obj); err != nil {
		r.log.WithError(err).WithObjectID(objectID).Warn("Failed to journal object state")
	}
}

// saveTasks persists a task-tree snapshot, deriving each node's path from
// its parent chain. Nodes arrive in creation order, so a parent's path is
// always computed before its children need it.
func (r *Recorder) saveTasks(ctx context.Context, episodeID string, nodes []plan.Task) error {
	paths := make([]string, len(nodes))
	for i, node := range nodes {
		if node.Parent >= 0 && node.Parent < i {
			paths[i] = paths[node.Parent] + "/" + node.Name
		} else {
			paths[i] = node.Name
		}
	}

	now := time.Now()
	for i, node := range nodes {
		params := "{}"
		if len(node.Params) > 0 {
			if raw, err := json.Marshal(node.Params); err == nil {
				params = string(raw)
			}
		}

		record := &TaskRecord{
			ID:        node.ID,
			EpisodeID: episodeID,
			Path:      paths[i],
			Name:      node.Name,
			Status:    TaskStatus(node.Status),
			Params:    params,
			StartedAt: node.StartedAt,
			CreatedAt: now,
		}
		if node.FailureKind != "" {
			kind := string(node.FailureKind)
			record.FailureKind = &kind
		}
		if !node.EndedAt.IsZero() {
			ended := node.EndedAt
			record.EndedAt = &ended
		}

		if err := r.store.CreateTask(ctx, record); err != nil {
			return err
		}
	}

	return nil
}
