package journal

import (
	"context"
	"database/sql"
	"time"
)

// EpisodeStatus represents the status of an execution episode
type EpisodeStatus string

const (
	EpisodeStatusPending   EpisodeStatus = "pending"
	EpisodeStatusRunning   EpisodeStatus = "running"
	EpisodeStatusSucceeded EpisodeStatus = "succeeded"
	EpisodeStatusFailed    EpisodeStatus = "failed"
	EpisodeStatusAborted   EpisodeStatus = "aborted"
)

// TaskStatus represents the recorded status of a task-tree node
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Episode represents one top-level goal or mission execution
type Episode struct {
	ID          string        `json:"id"`
	Mission     string        `json:"mission"`
	Status      EpisodeStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	FailureKind *string       `json:"failure_kind,omitempty"`
	Error       *string       `json:"error,omitempty"`
	Metadata    string        `json:"metadata"` // JSON blob
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TaskRecord represents one node of an episode's task tree
type TaskRecord struct {
	ID          string     `json:"id"`
	EpisodeID   string     `json:"episode_id"`
	Path        string     `json:"path"` // slash-joined names from the root, e.g. "fetch-object/at-location"
	Name        string     `json:"name"`
	Status      TaskStatus `json:"status"`
	FailureKind *string    `json:"failure_kind,omitempty"`
	Params      string     `json:"params"` // JSON blob
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EventRecord represents an append-only telemetry event
type EventRecord struct {
	ID        int64      `json:"id"`
	EpisodeID *string    `json:"episode_id,omitempty"`
	TaskPath  *string    `json:"task_path,omitempty"`
	Type      string     `json:"type"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// ObjectRecord represents the last known state of a world object
type ObjectRecord struct {
	ID            string    `json:"id"`
	ObjectID      string    `json:"object_id"`
	ObjectType    string    `json:"object_type"`
	Pose          string    `json:"pose"` // JSON blob
	Removed       bool      `json:"removed"`
	LastEpisodeID *string   `json:"last_episode_id,omitempty"`
	LastSeen      time.Time `json:"last_seen"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store defines the interface for the journal persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Episode operations
	CreateEpisode(ctx context.Context, episode *Episode) error
	GetEpisode(ctx context.Context, id string) (*Episode, error)
	UpdateEpisodeStatus(ctx context.Context, id string, status EpisodeStatus, failureKind *string, errMsg *string) error
	ListEpisodes(ctx context.Context, status *EpisodeStatus, limit, offset int) ([]*Episode, error)
	DeleteEpisode(ctx context.Context, id string) error

	// Task operations
	CreateTask(ctx context.Context, task *TaskRecord) error
	GetTask(ctx context.Context, id string) (*TaskRecord, error)
	ListTasksByEpisode(ctx context.Context, episodeID string) ([]*TaskRecord, error)

	// Event operations
	AppendEvent(ctx context.Context, event *EventRecord) error
	ListEvents(ctx context.Context, episodeID *string, eventType *string, level *EventLevel, limit, offset int) ([]*EventRecord, error)
	PruneEvents(ctx context.Context, before time.Time) (int64, error)

	// Object operations
	UpsertObject(ctx context.Context, obj *ObjectRecord) error
	GetObject(ctx context.Context, objectID string) (*ObjectRecord, error)
	ListObjects(ctx context.Context, limit, offset int) ([]*ObjectRecord, error)
	DeleteObject(ctx context.Context, objectID string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
