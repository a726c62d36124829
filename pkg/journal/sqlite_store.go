package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteTimeLayout is the datetime format SQLite's datetime() understands.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateEpisode creates a new episode record
func (s *SQLiteStore) CreateEpisode(ctx context.Context, episode *Episode) error {
	query := `
		INSERT INTO episodes (id, mission, status, started_at, completed_at, failure_kind, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		episode.ID,
		episode.Mission,
		episode.Status,
		episode.StartedAt,
		episode.CompletedAt,
		episode.FailureKind,
		episode.Error,
		episode.Metadata,
		episode.CreatedAt,
		episode.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}

	return nil
}

// GetEpisode retrieves an episode by ID
func (s *SQLiteStore) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	query := `
		SELECT id, mission, status, started_at, completed_at, failure_kind, error, metadata, created_at, updated_at
		FROM episodes
		WHERE id = ?
	`

	episode := &Episode{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&episode.ID,
		&episode.Mission,
		&episode.Status,
		&episode.StartedAt,
		&episode.CompletedAt,
		&episode.FailureKind,
		&episode.Error,
		&episode.Metadata,
		&episode.CreatedAt,
		&episode.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("episode not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	return episode, nil
}

// UpdateEpisodeStatus updates the status of an episode
func (s *SQLiteStore) UpdateEpisodeStatus(ctx context.Context, id string, status EpisodeStatus, failureKind *string, errMsg *string) error {
	query := `
		UPDATE episodes
		SET status = ?, failure_kind = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == EpisodeStatusSucceeded || status == EpisodeStatusFailed || status == EpisodeStatusAborted {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, failureKind, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update episode status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("episode not found: %s", id)
	}

	return nil
}

// ListEpisodes lists episodes with an optional status filter and pagination
func (s *SQLiteStore) ListEpisodes(ctx context.Context, status *EpisodeStatus, limit, offset int) ([]*Episode, error) {
	query := `
		SELECT id, mission, status, started_at, completed_at, failure_kind, error, metadata, created_at, updated_at
		FROM episodes
		WHERE (? IS NULL OR status = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, status, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	episodes := []*Episode{}
	for rows.Next() {
		episode := &Episode{}
		err := rows.Scan(
			&episode.ID,
			&episode.Mission,
			&episode.Status,
			&episode.StartedAt,
			&episode.CompletedAt,
			&episode.FailureKind,
			&episode.Error,
			&episode.Metadata,
			&episode.CreatedAt,
			&episode.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		episodes = append(episodes, episode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episodes: %w", err)
	}

	return episodes, nil
}

// DeleteEpisode deletes an episode by ID
func (s *SQLiteStore) DeleteEpisode(ctx context.Context, id string) error {
	query := `DELETE FROM episodes WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete episode: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("episode not found: %s", id)
	}

	return nil
}

// CreateTask creates a new task record
func (s *SQLiteStore) CreateTask(ctx context.Context, task *TaskRecord) error {
	query := `
		INSERT INTO tasks (id, episode_id, path, name, status, failure_kind, params, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.EpisodeID,
		task.Path,
		task.Name,
		task.Status,
		task.FailureKind,
		task.Params,
		task.StartedAt,
		task.EndedAt,
		task.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	query := `
		SELECT id, episode_id, path, name, status, failure_kind, params, started_at, ended_at, created_at
		FROM tasks
		WHERE id = ?
	`

	task := &TaskRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.EpisodeID,
		&task.Path,
		&task.Name,
		&task.Status,
		&task.FailureKind,
		&task.Params,
		&task.StartedAt,
		&task.EndedAt,
		&task.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// ListTasksByEpisode lists all tasks for an episode in insertion order
func (s *SQLiteStore) ListTasksByEpisode(ctx context.Context, episodeID string) ([]*TaskRecord, error) {
	query := `
		SELECT id, episode_id, path, name, status, failure_kind, params, started_at, ended_at, created_at
		FROM tasks
		WHERE episode_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*TaskRecord{}
	for rows.Next() {
		task := &TaskRecord{}
		err := rows.Scan(
			&task.ID,
			&task.EpisodeID,
			&task.Path,
			&task.Name,
			&task.Status,
			&task.FailureKind,
			&task.Params,
			&task.StartedAt,
			&task.EndedAt,
			&task.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// AppendEvent appends a new event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *EventRecord) error {
	query := `
		INSERT INTO events (episode_id, task_path, type, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	// Format timestamp to a SQLite-comparable datetime string so PruneEvents
	// can use datetime() on the stored value
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	result, err := s.db.ExecContext(ctx, query,
		event.EpisodeID,
		event.TaskPath,
		event.Type,
		event.Level,
		event.Message,
		event.Details,
		timestamp.UTC().Format(sqliteTimeLayout),
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// ListEvents retrieves events with optional filters and pagination
func (s *SQLiteStore) ListEvents(ctx context.Context, episodeID *string, eventType *string, level *EventLevel, limit, offset int) ([]*EventRecord, error) {
	query := `
		SELECT id, episode_id, task_path, type, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR episode_id = ?)
		  AND (? IS NULL OR type = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, episodeID, episodeID, eventType, eventType, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*EventRecord{}
	for rows.Next() {
		event := &EventRecord{}
		err := rows.Scan(
			&event.ID,
			&event.EpisodeID,
			&event.TaskPath,
			&event.Type,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// PruneEvents deletes all events older than the given cutoff
func (s *SQLiteStore) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM events WHERE datetime(timestamp) < datetime(?)`

	result, err := s.db.ExecContext(ctx, query, before.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// UpsertObject inserts or updates the last known state of a world object
func (s *SQLiteStore) UpsertObject(ctx context.Context, obj *ObjectRecord) error {
	query := `
		INSERT INTO objects (
			id, object_id, object_type, pose, removed, last_episode_id, last_seen, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(object_id) DO UPDATE SET
			object_type = excluded.object_type,
			pose = excluded.pose,
			removed = excluded.removed,
			last_episode_id = excluded.last_episode_id,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		obj.ID,
		obj.ObjectID,
		obj.ObjectType,
		obj.Pose,
		obj.Removed,
		obj.LastEpisodeID,
		obj.LastSeen,
		obj.CreatedAt,
		obj.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert object: %w", err)
	}

	return nil
}

// GetObject retrieves an object by its world object ID
func (s *SQLiteStore) GetObject(ctx context.Context, objectID string) (*ObjectRecord, error) {
	query := `
		SELECT id, object_id, object_type, pose, removed, last_episode_id, last_seen, created_at, updated_at
		FROM objects
		WHERE object_id = ?
	`

	obj := &ObjectRecord{}
	err := s.db.QueryRowContext(ctx, query, objectID).Scan(
		&obj.ID,
		&obj.ObjectID,
		&obj.ObjectType,
		&obj.Pose,
		&obj.Removed,
		&obj.LastEpisodeID,
		&obj.LastSeen,
		&obj.CreatedAt,
		&obj.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object not found: %s", objectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return obj, nil
}

// ListObjects lists all known objects with pagination
func (s *SQLiteStore) ListObjects(ctx context.Context, limit, offset int) ([]*ObjectRecord, error) {
	query := `
		SELECT id, object_id, object_type, pose, removed, last_episode_id, last_seen, created_at, updated_at
		FROM objects
		ORDER BY last_seen DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	objects := []*ObjectRecord{}
	for rows.Next() {
		obj := &ObjectRecord{}
		err := rows.Scan(
			&obj.ID,
			&obj.ObjectID,
			&obj.ObjectType,
			&obj.Pose,
			&obj.Removed,
			&obj.LastEpisodeID,
			&obj.LastSeen,
			&obj.CreatedAt,
			&obj.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objects = append(objects, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}

	return objects, nil
}

// DeleteObject deletes an object by its world object ID
func (s *SQLiteStore) DeleteObject(ctx context.Context, objectID string) error {
	query := `DELETE FROM objects WHERE object_id = ?`

	result, err := s.db.ExecContext(ctx, query, objectID)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("object not found: %s", objectID)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
