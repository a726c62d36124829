// Package journal provides the persistence layer for OpenRove. It includes
// SQLite-based storage with WAL mode, connection pooling and CRUD operations
// for episodes, task trees, events and world objects, plus a Recorder that
// captures the live telemetry event stream into the journal.
package journal
