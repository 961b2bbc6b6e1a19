package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	// SQLite driver - imported for side effects (registers the driver).
	// modernc.org/sqlite is a pure-Go implementation that doesn't need CGO.
	_ "modernc.org/sqlite"
)

// ErrDiffNotFound is returned when an operation targets a non-existent diff record.
var ErrDiffNotFound = errors.New("diff not found")

// timeFormat is a fixed-width RFC3339 layout so stored timestamps sort
// lexically in chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists parsed diffs using SQLite.
// It creates the database and tables on first use and supports
// concurrent access through internal locking.
type SQLiteStore struct {
	db *sql.DB      // Database connection handle.
	mu sync.RWMutex // Guards all database operations for thread safety.
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// It initializes the schema if the tables don't exist.
// Use ":memory:" for an in-memory database (useful for testing).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	log.Printf("storage: opening database at %s", path)

	// foreign_keys is off by default in SQLite and must be enabled per
	// connection; the ON DELETE CASCADE clauses depend on it.
	// busy_timeout makes a locked database wait up to 5s instead of failing
	// with SQLITE_BUSY, e.g. when "diffcore list" runs while "serve" saves.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries
	// and matches SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// Create tables or migrate an older file to the current schema.
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Printf("storage: database ready (schema version %d)", currentSchemaVersion)
	return store, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	log.Printf("storage: closing database")
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime accepts the fixed-width layout and plain RFC3339 timestamps.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
