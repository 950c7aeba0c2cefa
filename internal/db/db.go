package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is the default database location
const DefaultPath = "/var/lib/hwgod/hwgod.db"

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// New opens or creates the SQLite database at the given path
func New(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	db := &DB{conn: conn, path: path, now: func() time.Time { return time.Now().UTC() }}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// SchemaVersion returns the highest applied migration
func (d *DB) SchemaVersion() (int, error) {
	var version int
	err := d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// migrate runs the database schema migrations
func (d *DB) migrate() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	version, err := d.SchemaVersion()
	if err != nil {
		return err
	}

	migrations := []string{
		migrationV1,
		migrationV2,
	}

	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		tx, err := d.conn.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// migrationV1 creates the settings store, the hardware event journal and
// the drive inventory
const migrationV1 = `
-- Settings keyed by hardware identifier and suffix (e.g. hdd/0/temperature/0/tray)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Hardware appearing and disappearing, per monitoring session
CREATE TABLE IF NOT EXISTS hardware_events (
    id INTEGER PRIMARY KEY,
    session TEXT NOT NULL,
    identifier TEXT NOT NULL,
    name TEXT,
    hardware_type TEXT,
    event_type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_identifier ON hardware_events(identifier);
CREATE INDEX IF NOT EXISTS idx_events_time ON hardware_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_session ON hardware_events(session);

-- Drive inventory: permanent record of all drives seen
CREATE TABLE IF NOT EXISTS drives (
    id INTEGER PRIMARY KEY,
    serial TEXT UNIQUE NOT NULL,
    model TEXT,
    firmware TEXT,
    size_bytes INTEGER,
    identifier TEXT,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drives_identifier ON drives(identifier);
`

// migrationV2 adds the sensor sample log written by monitor --record
const migrationV2 = `
CREATE TABLE IF NOT EXISTS sensor_samples (
    id INTEGER PRIMARY KEY,
    session TEXT NOT NULL,
    identifier TEXT NOT NULL,
    value REAL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_identifier_time ON sensor_samples(identifier, timestamp);
`

// HardwareEvent is one entry of the hardware journal
type HardwareEvent struct {
	ID           int64     `json:"id"`
	Session      string    `json:"session"`
	Identifier   string    `json:"identifier"`
	Name         string    `json:"name,omitempty"`
	HardwareType string    `json:"hardware_type,omitempty"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
}

// DriveRecord represents a drive in the inventory
type DriveRecord struct {
	ID         int64     `json:"id"`
	Serial     string    `json:"serial"`
	Model      string    `json:"model,omitempty"`
	Firmware   string    `json:"firmware,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// SampleRecord is one sensor value of one tick
type SampleRecord struct {
	Session    string
	Identifier string
	Value      *float64
	Timestamp  time.Time
}

// Event types
const (
	EventAdded   = "added"
	EventRemoved = "removed"
	EventStarted = "session_started"
	EventStopped = "session_stopped"
)

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}
