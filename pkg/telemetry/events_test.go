package telemetry

import (
	"testing"
	"time"
)

func syncPublisher(t *testing.T) *EventPublisher {
	t.Helper()
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:     true,
		BufferSize:  16,
		EnableAsync: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ep
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	ep := syncPublisher(t)

	got := make(chan Event, 1)
	ep.Subscribe(func(e Event) { got <- e }, nil)

	if err := ep.PublishNavigationLost("goal-1", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case e := <-got:
		if e.Type != EventTypeNavigationLost {
			t.Errorf("expected %s, got %s", EventTypeNavigationLost, e.Type)
		}
		if e.Level != EventLevelWarning {
			t.Errorf("expected warning level, got %s", e.Level)
		}
		if e.Data["losses"] != 3 {
			t.Errorf("expected losses=3, got %v", e.Data["losses"])
		}
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Error("expected ID and timestamp to be filled in")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestSubscriberFilterExcludesEvents(t *testing.T) {
	ep := syncPublisher(t)

	got := make(chan Event, 4)
	ep.Subscribe(func(e Event) { got <- e }, FilterByLevel(EventLevelWarning))

	_ = ep.PublishGoalStarted("m-1", "goal-1", "at-location") // info
	_ = ep.PublishGoalFailed("m-1", "goal-1", "at-location", "aborted")

	select {
	case e := <-got:
		if e.Type != EventTypeGoalFailed {
			t.Errorf("expected only the failure event, got %s", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the failure event")
	}

	select {
	case e := <-got:
		t.Fatalf("expected no further events, got %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisabledPublisherDropsEvents(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	delivered := false
	ep.Subscribe(func(Event) { delivered = true }, nil)

	if err := ep.PublishObjectSeen("mug-1", "mug"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if delivered {
		t.Error("expected no delivery from a disabled publisher")
	}
}

func TestEventFilters(t *testing.T) {
	byType := FilterByType(EventTypeLockAcquired, EventTypeLockReleased)
	if !byType(Event{Type: EventTypeLockAcquired}) {
		t.Error("expected lock.acquired to pass the type filter")
	}
	if byType(Event{Type: EventTypeGoalStarted}) {
		t.Error("expected goal.started to be filtered out")
	}

	byMission := FilterByMissionID("m-1")
	if !byMission(Event{MissionID: "m-1"}) || byMission(Event{MissionID: "m-2"}) {
		t.Error("expected mission filter to match only m-1")
	}

	byGoal := FilterByGoalID("goal-1")
	if !byGoal(Event{GoalID: "goal-1"}) || byGoal(Event{GoalID: "goal-2"}) {
		t.Error("expected goal filter to match only goal-1")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(*Config) {}, false},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }, true},
		{"bad sampling rate", func(c *Config) { c.Tracing.SamplingRate = 1.5 }, true},
		{"zero event buffer", func(c *Config) { c.Events.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
