package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the OpenRove system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// MissionID is the associated mission ID, if applicable.
	MissionID string `json:"mission_id,omitempty"`

	// GoalID is the associated goal ID, if applicable.
	GoalID string `json:"goal_id,omitempty"`

	// TaskPath is the slash-joined path of the task that emitted the event.
	TaskPath string `json:"task_path,omitempty"`

	// ObjectID is the associated world object ID, if applicable.
	ObjectID string `json:"object_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeMissionStarted    = "mission.started"
	EventTypeMissionCompleted  = "mission.completed"
	EventTypeMissionFailed     = "mission.failed"
	EventTypeGoalStarted       = "goal.started"
	EventTypeGoalSucceeded     = "goal.succeeded"
	EventTypeGoalFailed        = "goal.failed"
	EventTypeNavigationStarted = "navigation.started"
	EventTypeNavigationArrived = "navigation.arrived"
	EventTypeNavigationLost    = "navigation.lost"
	EventTypeObjectSeen        = "perception.object_seen"
	EventTypeObjectRemoved     = "perception.object_removed"
	EventTypeLockAcquired      = "lock.acquired"
	EventTypeLockReleased      = "lock.released"
	EventTypeFailureRaised     = "failure.raised"
	EventTypeRetryAttempted    = "retry.attempted"
	EventTypeDesignatorRebound = "designator.rebound"
	EventTypePolicyViolation   = "policy.violation"
	EventTypeError             = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishMissionStarted publishes a mission started event.
func (ep *EventPublisher) PublishMissionStarted(missionID, name string) error {
	return ep.Publish(Event{
		Type:      EventTypeMissionStarted,
		Source:    "mission",
		MissionID: missionID,
		Message:   fmt.Sprintf("Mission %s (%s) started", missionID, name),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"name": name,
		},
	})
}

// PublishMissionCompleted publishes a mission completed event.
func (ep *EventPublisher) PublishMissionCompleted(missionID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypeMissionCompleted,
		Source:    "mission",
		MissionID: missionID,
		Message:   fmt.Sprintf("Mission %s completed with status: %s", missionID, status),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishMissionFailed publishes a mission failed event.
func (ep *EventPublisher) PublishMissionFailed(missionID, reason string) error {
	return ep.Publish(Event{
		Type:      EventTypeMissionFailed,
		Source:    "mission",
		MissionID: missionID,
		Message:   fmt.Sprintf("Mission %s failed: %s", missionID, reason),
		Level:     EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishGoalStarted publishes a goal started event.
func (ep *EventPublisher) PublishGoalStarted(missionID, goalID, class string) error {
	return ep.Publish(Event{
		Type:      EventTypeGoalStarted,
		Source:    "executive",
		MissionID: missionID,
		GoalID:    goalID,
		Message:   fmt.Sprintf("Goal %s started: %s", goalID, class),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"class": class,
		},
	})
}

// PublishGoalSucceeded publishes a goal succeeded event.
func (ep *EventPublisher) PublishGoalSucceeded(missionID, goalID, class string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypeGoalSucceeded,
		Source:    "executive",
		MissionID: missionID,
		GoalID:    goalID,
		Message:   fmt.Sprintf("Goal %s (%s) succeeded", goalID, class),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"class":    class,
			"duration": duration.Seconds(),
		},
	})
}

// PublishGoalFailed publishes a goal failed event.
func (ep *EventPublisher) PublishGoalFailed(missionID, goalID, class, reason string) error {
	return ep.Publish(Event{
		Type:      EventTypeGoalFailed,
		Source:    "executive",
		MissionID: missionID,
		GoalID:    goalID,
		Message:   fmt.Sprintf("Goal %s (%s) failed: %s", goalID, class, reason),
		Level:     EventLevelError,
		Data: map[string]interface{}{
			"class":  class,
			"reason": reason,
		},
	})
}

// PublishNavigationStarted publishes a navigation started event.
func (ep *EventPublisher) PublishNavigationStarted(goalID, target string) error {
	return ep.Publish(Event{
		Type:    EventTypeNavigationStarted,
		Source:  "executive",
		GoalID:  goalID,
		Message: fmt.Sprintf("Navigating to %s", target),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"target": target,
		},
	})
}

// PublishNavigationArrived publishes a navigation arrived event.
func (ep *EventPublisher) PublishNavigationArrived(goalID, target string) error {
	return ep.Publish(Event{
		Type:    EventTypeNavigationArrived,
		Source:  "executive",
		GoalID:  goalID,
		Message: fmt.Sprintf("Arrived at %s", target),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"target": target,
		},
	})
}

// PublishNavigationLost publishes a navigation lost event.
func (ep *EventPublisher) PublishNavigationLost(goalID string, losses int) error {
	return ep.Publish(Event{
		Type:    EventTypeNavigationLost,
		Source:  "executive",
		GoalID:  goalID,
		Message: fmt.Sprintf("Target location lost (loss %d), re-navigating", losses),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"losses": losses,
		},
	})
}

// PublishObjectSeen publishes a perception event for a newly seen object.
func (ep *EventPublisher) PublishObjectSeen(objectID, objectType string) error {
	return ep.Publish(Event{
		Type:     EventTypeObjectSeen,
		Source:   "perception",
		ObjectID: objectID,
		Message:  fmt.Sprintf("Object %s (%s) seen", objectID, objectType),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"object_type": objectType,
		},
	})
}

// PublishObjectRemoved publishes a perception event for a removed object.
func (ep *EventPublisher) PublishObjectRemoved(objectID string) error {
	return ep.Publish(Event{
		Type:     EventTypeObjectRemoved,
		Source:   "perception",
		ObjectID: objectID,
		Message:  fmt.Sprintf("Object %s removed from the world view", objectID),
		Level:    EventLevelInfo,
	})
}

// PublishLockAcquired publishes a lock acquired event.
func (ep *EventPublisher) PublishLockAcquired(class, holder string) error {
	return ep.Publish(Event{
		Type:    EventTypeLockAcquired,
		Source:  "locks",
		Message: fmt.Sprintf("Lock %s acquired by %s", class, holder),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"class":  class,
			"holder": holder,
		},
	})
}

// PublishLockReleased publishes a lock released event.
func (ep *EventPublisher) PublishLockReleased(class, holder string) error {
	return ep.Publish(Event{
		Type:    EventTypeLockReleased,
		Source:  "locks",
		Message: fmt.Sprintf("Lock %s released by %s", class, holder),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"class":  class,
			"holder": holder,
		},
	})
}

// PublishFailureRaised publishes a failure event.
func (ep *EventPublisher) PublishFailureRaised(goalID, kind, message string) error {
	return ep.Publish(Event{
		Type:    EventTypeFailureRaised,
		Source:  "executive",
		GoalID:  goalID,
		Message: fmt.Sprintf("Failure [%s]: %s", kind, message),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"kind": kind,
		},
	})
}

// PublishRetryAttempted publishes a retry event.
func (ep *EventPublisher) PublishRetryAttempted(goalID, kind string, attempt int) error {
	return ep.Publish(Event{
		Type:    EventTypeRetryAttempted,
		Source:  "executive",
		GoalID:  goalID,
		Message: fmt.Sprintf("Retry %d after %s failure", attempt, kind),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"kind":    kind,
			"attempt": attempt,
		},
	})
}

// PublishDesignatorRebound publishes a designator rebind event.
func (ep *EventPublisher) PublishDesignatorRebound(name string, solution int) error {
	return ep.Publish(Event{
		Type:    EventTypeDesignatorRebound,
		Source:  "designators",
		Message: fmt.Sprintf("Designator %s rebound to solution %d", name, solution),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"name":     name,
			"solution": solution,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(action, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy",
		Message: fmt.Sprintf("Policy violation on action %s: %s - %s", action, policyName, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"action": action,
			"policy": policyName,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByMissionID creates a filter that only allows events for a specific mission.
func FilterByMissionID(missionID string) EventFilter {
	return func(event Event) bool {
		return event.MissionID == missionID
	}
}

// FilterByGoalID creates a filter that only allows events for a specific goal.
func FilterByGoalID(goalID string) EventFilter {
	return func(event Event) bool {
		return event.GoalID == goalID
	}
}
