package storage

import (
	"fmt"
	"log"
	"time"
)

// currentSchemaVersion is the current database schema version.
// Increment this when making schema changes and add migration logic.
const currentSchemaVersion = 5

// initSchema applies any migrations newer than the recorded version.
func (s *SQLiteStore) initSchema() error {
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	migrations := []func() error{
		s.migrateToV1,
		s.migrateToV2,
		s.migrateToV3,
		s.migrateToV4,
		s.migrateToV5,
	}
	for i, migrate := range migrations {
		if version >= i+1 {
			continue
		}
		if err := migrate(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", i+1, err)
		}
	}

	return nil
}

// applyMigration runs ddl and records version in one transaction.
func (s *SQLiteStore) applyMigration(version int, ddl string) error {
	log.Printf("storage: applying migration to schema version %d", version)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		version,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// migrateToV1 creates the diffs table, one row per parsed input.
// Summary statistics are denormalized so listing never touches hunks.
func (s *SQLiteStore) migrateToV1() error {
	return s.applyMigration(1, `
		CREATE TABLE IF NOT EXISTS diffs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			change_count INTEGER NOT NULL DEFAULT 0,
			files INTEGER NOT NULL DEFAULT 0,
			hunks INTEGER NOT NULL DEFAULT 0,
			added_lines INTEGER NOT NULL DEFAULT 0,
			deleted_lines INTEGER NOT NULL DEFAULT 0,
			binary_files INTEGER NOT NULL DEFAULT 0,
			byte_size INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_diffs_created_at ON diffs(created_at);
	`)
}

// migrateToV2 adds the changes table. Everything except hunks is kept as
// the change's JSON dictionary; the indexed columns exist for lookups.
func (s *SQLiteStore) migrateToV2() error {
	return s.applyMigration(2, `
		CREATE TABLE IF NOT EXISTS changes (
			diff_id TEXT NOT NULL REFERENCES diffs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			change_key TEXT NOT NULL,
			change_type INTEGER NOT NULL,
			file_type INTEGER NOT NULL,
			old_path TEXT NOT NULL DEFAULT '',
			current_path TEXT NOT NULL DEFAULT '',
			commit_hash TEXT NOT NULL DEFAULT '',
			dictionary TEXT NOT NULL,
			PRIMARY KEY (diff_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_changes_current_path ON changes(current_path);
	`)
}

// migrateToV3 adds the hunks table.
func (s *SQLiteStore) migrateToV3() error {
	return s.applyMigration(3, `
		CREATE TABLE IF NOT EXISTS hunks (
			diff_id TEXT NOT NULL,
			change_position INTEGER NOT NULL,
			position INTEGER NOT NULL,
			old_offset INTEGER NOT NULL,
			old_length INTEGER NOT NULL,
			new_offset INTEGER NOT NULL,
			new_length INTEGER NOT NULL,
			add_lines INTEGER NOT NULL,
			del_lines INTEGER NOT NULL,
			missing_old_newline INTEGER NOT NULL DEFAULT 0,
			missing_new_newline INTEGER NOT NULL DEFAULT 0,
			corpus TEXT NOT NULL,
			PRIMARY KEY (diff_id, change_position, position),
			FOREIGN KEY (diff_id, change_position)
				REFERENCES changes(diff_id, position) ON DELETE CASCADE
		);
	`)
}

// migrateToV4 adds parse outcome events used by ParseMetrics.
func (s *SQLiteStore) migrateToV4() error {
	return s.applyMigration(4, `
		CREATE TABLE IF NOT EXISTS parse_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_parse_events_recorded_at ON parse_events(recorded_at);
	`)
}

// migrateToV5 adds away_paths. The dictionary's JSON copy of these paths
// can lose bytes that are not valid UTF-8; the TEXT column keeps them.
func (s *SQLiteStore) migrateToV5() error {
	return s.applyMigration(5, `
		CREATE TABLE IF NOT EXISTS away_paths (
			diff_id TEXT NOT NULL,
			change_position INTEGER NOT NULL,
			position INTEGER NOT NULL,
			path TEXT NOT NULL,
			PRIMARY KEY (diff_id, change_position, position),
			FOREIGN KEY (diff_id, change_position)
				REFERENCES changes(diff_id, position) ON DELETE CASCADE
		);
	`)
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}
