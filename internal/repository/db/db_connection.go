package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// pragmas run on the single pooled connection before the schema.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// InitDB opens or creates the SQLite file and ensures the tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	if err := prepare(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func prepare(db *sql.DB) error {
	// one writer; pragmas are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

const schemaSettings = `
CREATE TABLE IF NOT EXISTS settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    setpoint REAL NOT NULL,
    mode TEXT NOT NULL,
    alarm_threshold REAL NOT NULL,
    manual_percent REAL NOT NULL,
    alarm_percent REAL NOT NULL,
    kp REAL NOT NULL,
    ki REAL NOT NULL,
    kd REAL NOT NULL,
    postrun_seconds REAL NOT NULL,
    swap_sensors BOOLEAN NOT NULL,
    smoothing_enabled BOOLEAN NOT NULL,
    smoothing_alpha REAL NOT NULL,
    actuator_min_override INTEGER,
    thermocouple_type TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP NOT NULL
);
`

const schemaControlEvents = `
CREATE TABLE IF NOT EXISTS control_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const indexControlEventsTime = `
CREATE INDEX IF NOT EXISTS idx_control_events_occurred_at ON control_events (occurred_at);
`

const indexControlEventsType = `
CREATE INDEX IF NOT EXISTS idx_control_events_type ON control_events (type, occurred_at);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL COLLATE NOCASE,
    password_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range []string{
		schemaSettings,
		schemaControlEvents,
		indexControlEventsTime,
		indexControlEventsType,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
