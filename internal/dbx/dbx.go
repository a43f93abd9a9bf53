// Package dbx provides the SQLite-backed persistence layer: connection
// setup, schema migration, and lifecycle management.
//
// Purpose:
// - Open and configure the single SQLite connection pool
// - Apply schema migrations on startup (users, sessions, stored_files,
//   user_quotas)
// - Provide health checks for the process's /health endpoint
//
// Implementation Details:
// - Uses database/sql with the pure-Go modernc.org/sqlite driver (no cgo)
// - SQLite only supports one writer at a time: MaxOpenConns is pinned to 1
//   so database/sql serializes writers instead of returning SQLITE_BUSY
// - WAL mode and a busy timeout are set via connection pragmas; with the
//   pool pinned to one connection, reads queue behind writes as well
// - Schema initialization runs CREATE TABLE IF NOT EXISTS on startup
//
// Thread Safety:
// - Safe for concurrent use; the driver and database/sql pool serialize
//   writers transparently
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite"
)

// Config holds database configuration.
type Config struct {
	Path string // filesystem path to the SQLite database file
}

// Database represents the database connection.
type Database struct {
	db *sql.DB
}

var safePathSegment = regexp.MustCompile(`^[a-zA-Z0-9_\-./]+$`)

// validateConfig rejects paths with characters that have no business in a
// filesystem path, mirroring the defensive posture used for connection
// parameters elsewhere in this codebase.
func validateConfig(config Config) error {
	if config.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if !safePathSegment.MatchString(config.Path) {
		return fmt.Errorf("invalid database path: %s", config.Path)
	}
	return nil
}

// NewDatabase opens the SQLite database at the configured path.
func NewDatabase(config Config) (*Database, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", config.Path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows exactly one writer; pin the pool so database/sql queues
	// writers instead of the driver returning SQLITE_BUSY under load.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: sqlDB}, nil
}

// DB returns the underlying *sql.DB for packages that need raw access.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the connection is alive.
func (d *Database) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Migrate creates the schema if it does not already exist.
func (d *Database) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			active INTEGER NOT NULL DEFAULT 1,
			settings TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			last_login DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,

		`CREATE TABLE IF NOT EXISTS stored_files (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			filename TEXT NOT NULL,
			original_name TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			uploaded_at DATETIME NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stored_files_owner ON stored_files(user_id, category)`,
		`CREATE INDEX IF NOT EXISTS idx_stored_files_category ON stored_files(category)`,

		`CREATE TABLE IF NOT EXISTS user_quotas (
			user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			quota_bytes INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS rate_limit_attempts (
			action TEXT NOT NULL,
			identity TEXT NOT NULL,
			attempt_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limit_key ON rate_limit_attempts(action, identity, attempt_at)`,

		`CREATE TABLE IF NOT EXISTS daily_metrics (
			day TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT NOT NULL DEFAULT '',
			changes TEXT NOT NULL DEFAULT '{}',
			timestamp DATETIME NOT NULL,
			ip_address TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id, timestamp)`,
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return tx.Commit()
}
