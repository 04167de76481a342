// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo. Tests use ":memory:" databases.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB   is a connection pool, not a single connection
//   - sql.Tx   is a transaction pinned to one connection
//   - sql.Rows must always be closed
//
// The pool is capped at one open connection. SQLite serializes writers
// anyway, and a single connection keeps ":memory:" databases shared across
// every query instead of giving each pooled connection its own empty DB.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB owns the connection pool and hands out one typed store per table group.
//
//	db.Users()       → repository.UserRepository
//	db.Timeline()    → repository.TimelineRepository
//	db.FoodLogs()    → repository.FoodLogRepository
//	db.Comments()    → repository.CommentRepository
//	db.Credentials() → repository.CredentialRepository
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath, applies connection pragmas and runs
// migrations.
//
// dbPath examples:
//   - "data/glucose.db" → file-based database
//   - ":memory:"        → in-memory database, lost on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers in other processes (the CLI) proceed while the server
	// writes. foreign_keys is off by default in SQLite and the cascade
	// deletes depend on it.
	pragmas := []struct{ stmt, desc string }{
		{"PRAGMA journal_mode=WAL", "setting WAL mode"},
		{"PRAGMA foreign_keys=ON", "enabling foreign keys"},
		{"PRAGMA busy_timeout=5000", "setting busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p.desc, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /api/health.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }
func (db *DB) Timeline() *TimelineDB { return &TimelineDB{conn: db.conn} }
func (db *DB) FoodLogs() *FoodLogDB { return &FoodLogDB{conn: db.conn} }
func (db *DB) Comments() *CommentDB { return &CommentDB{conn: db.conn} }
func (db *DB) Credentials() *CredentialDB { return &CredentialDB{conn: db.conn} }

// migrate creates every table. CREATE ... IF NOT EXISTS makes it safe to run
// on each start.
//
// Reading and food-log timestamps are INTEGER Unix nanoseconds in UTC.
// Exact equality is the sync dedup key and range queries compare integers,
// so neither depends on how the driver formats time.Time as text.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			full_name       TEXT NOT NULL,
			email           TEXT NOT NULL UNIQUE,
			password_hash   TEXT NOT NULL,
			role            TEXT NOT NULL DEFAULT 'patient',
			phone           TEXT NOT NULL DEFAULT '',
			date_of_birth   DATETIME,
			medical_history TEXT NOT NULL DEFAULT '',
			dexcom_id       TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// The partial unique index is the commit-time guard for device rows:
	// two sync merges racing on the same (user_id, recorded_at) cannot both
	// insert. Manual rows are exempt.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS glucose_readings (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			value       REAL NOT NULL,
			recorded_at INTEGER NOT NULL,
			context     TEXT NOT NULL DEFAULT '',
			notes       TEXT NOT NULL DEFAULT '',
			synced      INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_readings_user_time ON glucose_readings(user_id, recorded_at);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_readings_device_dedup
			ON glucose_readings(user_id, recorded_at) WHERE synced = 1;
	`)
	if err != nil {
		return fmt.Errorf("creating glucose_readings table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS food_logs (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			food_name   TEXT NOT NULL,
			quantity    TEXT NOT NULL DEFAULT '',
			calories    INTEGER,
			carbs       REAL,
			protein     REAL,
			meal_type   TEXT NOT NULL DEFAULT '',
			recorded_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_food_logs_user_time ON food_logs(user_id, recorded_at);
	`)
	if err != nil {
		return fmt.Errorf("creating food_logs table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id          TEXT PRIMARY KEY,
			patient_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			body        TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_patient ON comments(patient_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating comments table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS device_credentials (
			user_id       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			token_type    TEXT NOT NULL DEFAULT '',
			expiry        INTEGER NOT NULL DEFAULT 0,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating device_credentials table: %w", err)
	}

	if err := db.addColumnIfNotExists("users", "medical_history",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding medical_history to users: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent for databases created by older builds.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// toNanos and fromNanos convert timeline timestamps to and from storage.
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
