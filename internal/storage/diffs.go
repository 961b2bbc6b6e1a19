package storage

// diffs.go contains SQLiteStore methods for saving and loading parsed diffs.
// A ChangeSet is spread over four tables: one diffs row with summary stats,
// one changes row per Change, one hunks row per Hunk and one away_paths row
// per path a moved or copied file went to.
//
// Paths are read back from their own TEXT columns rather than from the JSON
// dictionary. Git can quote file names as octal escapes that decode to bytes
// which are not valid UTF-8, and encoding/json would replace those bytes.

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pseudocoder/diffcore/internal/diff"
)

// defaultListLimit caps ListDiffs when no limit is given.
const defaultListLimit = 50

// DiffRecord is the summary row of a stored diff.
type DiffRecord struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"createdAt"`
	Changes      int       `json:"changes"`
	Files        int       `json:"files"`
	Hunks        int       `json:"hunks"`
	AddedLines   int       `json:"addedLines"`
	DeletedLines int       `json:"deletedLines"`
	BinaryFiles  int       `json:"binaryFiles"`
	ByteSize     int       `json:"byteSize"`
}

// DiffStore is the persistence interface used by the server and CLI.
type DiffStore interface {
	SaveDiff(source string, cs *diff.ChangeSet) (*DiffRecord, error)
	GetDiff(id string) (*DiffRecord, *diff.ChangeSet, error)
	ListDiffs(limit int) ([]*DiffRecord, error)
	DeleteDiff(id string) error
	CountDiffs() (int, error)
}

// SaveDiff stores cs under a new ID. source is a free-form label such as a
// file name or "http".
func (s *SQLiteStore) SaveDiff(source string, cs *diff.ChangeSet) (*DiffRecord, error) {
	if cs == nil {
		return nil, errors.New("change set cannot be nil")
	}

	stats := diff.CalculateStats(cs)
	rec := &DiffRecord{
		ID:           uuid.NewString(),
		Source:       source,
		CreatedAt:    time.Now().UTC(),
		Changes:      cs.Len(),
		Files:        stats.Files,
		Hunks:        stats.Hunks,
		AddedLines:   stats.AddedLines,
		DeletedLines: stats.DeletedLines,
		BinaryFiles:  stats.BinaryFiles,
		ByteSize:     stats.ByteSize,
	}

	// Writers are serialized so a diff and its rows land in one transaction
	// without SQLITE_BUSY from a concurrent save.
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: saving diff %s (source=%s, changes=%d)", rec.ID, source, rec.Changes)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin save diff: %w", err)
	}
	// Rollback is a no-op after a successful Commit.
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO diffs
			(id, source, created_at, change_count, files, hunks, added_lines, deleted_lines, binary_files, byte_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Source, formatTime(rec.CreatedAt), rec.Changes, rec.Files,
		rec.Hunks, rec.AddedLines, rec.DeletedLines, rec.BinaryFiles, rec.ByteSize,
	)
	if err != nil {
		return nil, fmt.Errorf("save diff: %w", err)
	}

	// Keys and Changes share one order; position preserves it on load.
	keys := cs.Keys()
	for pos, c := range cs.Changes() {
		if err := insertChange(tx, rec.ID, pos, keys[pos], c); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit diff: %w", err)
	}
	return rec, nil
}

// insertChange writes one change with its hunks and away paths. Hunks have
// their own table, so they are left out of the stored dictionary.
func insertChange(tx *sql.Tx, diffID string, pos int, key string, c *diff.Change) error {
	d := c.ToDictionary()
	delete(d, "hunks")
	encoded, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode change %s: %w", key, err)
	}

	_, err = tx.Exec(`
		INSERT INTO changes
			(diff_id, position, change_key, change_type, file_type, old_path, current_path, commit_hash, dictionary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		diffID, pos, key, int(c.Type()), int(c.FileType()),
		c.OldPath(), c.CurrentPath(), c.CommitHash(), string(encoded),
	)
	if err != nil {
		return fmt.Errorf("save change %s: %w", key, err)
	}

	for apos, path := range c.AwayPaths() {
		_, err = tx.Exec(`
			INSERT INTO away_paths (diff_id, change_position, position, path)
			VALUES (?, ?, ?, ?)
		`, diffID, pos, apos, path)
		if err != nil {
			return fmt.Errorf("save away path of %s: %w", key, err)
		}
	}

	for hpos, h := range c.Hunks() {
		_, err = tx.Exec(`
			INSERT INTO hunks
				(diff_id, change_position, position, old_offset, old_length, new_offset, new_length,
				 add_lines, del_lines, missing_old_newline, missing_new_newline, corpus)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			diffID, pos, hpos, h.OldOffset(), h.OldLength(), h.NewOffset(), h.NewLength(),
			h.AddLines(), h.DelLines(), boolToInt(h.IsMissingOldNewline()),
			boolToInt(h.IsMissingNewNewline()), h.Corpus(),
		)
		if err != nil {
			return fmt.Errorf("save hunk %d of %s: %w", hpos, key, err)
		}
	}
	return nil
}

// GetDiff loads a stored diff and rebuilds its ChangeSet.
// Returns ErrDiffNotFound if no record has the given ID.
func (s *SQLiteStore) GetDiff(id string) (*DiffRecord, *diff.ChangeSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanDiffRecord(s.db.QueryRow(`
		SELECT id, source, created_at, change_count, files, hunks, added_lines, deleted_lines, binary_files, byte_size
		FROM diffs
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrDiffNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get diff: %w", err)
	}

	dicts, err := s.loadChanges(id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.loadAwayPaths(id, dicts); err != nil {
		return nil, nil, err
	}
	if err := s.loadHunks(id, dicts); err != nil {
		return nil, nil, err
	}

	cs, err := diff.ChangeSetFromDictionaries(dicts)
	if err != nil {
		return nil, nil, fmt.Errorf("decode diff %s: %w", id, err)
	}
	return rec, cs, nil
}

// loadChanges returns the change dictionaries of a diff in position order,
// each with an empty hunk list ready for loadHunks. The path columns
// overwrite the dictionary's copies, which may have lost bytes to JSON.
func (s *SQLiteStore) loadChanges(id string) ([]diff.Dictionary, error) {
	rows, err := s.db.Query(`
		SELECT old_path, current_path, dictionary
		FROM changes
		WHERE diff_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load changes: %w", err)
	}
	defer rows.Close()

	var dicts []diff.Dictionary
	for rows.Next() {
		var oldPath, currentPath, encoded string
		if err := rows.Scan(&oldPath, &currentPath, &encoded); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		d, err := diff.DecodeDictionary([]byte(encoded))
		if err != nil {
			return nil, fmt.Errorf("decode change: %w", err)
		}
		d["oldPath"] = oldPath
		d["currentPath"] = currentPath
		d["hunks"] = []any{}
		dicts = append(dicts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load changes: %w", err)
	}
	return dicts, nil
}

// loadAwayPaths replaces the awayPaths of each change that has rows in
// away_paths. Diffs saved before schema version 5 have none and keep the
// dictionary's list.
func (s *SQLiteStore) loadAwayPaths(id string, dicts []diff.Dictionary) error {
	rows, err := s.db.Query(`
		SELECT change_position, path
		FROM away_paths
		WHERE diff_id = ?
		ORDER BY change_position, position
	`, id)
	if err != nil {
		return fmt.Errorf("load away paths: %w", err)
	}
	defer rows.Close()

	away := make(map[int][]any)
	for rows.Next() {
		var changePos int
		var path string
		if err := rows.Scan(&changePos, &path); err != nil {
			return fmt.Errorf("scan away path: %w", err)
		}
		if changePos < 0 || changePos >= len(dicts) {
			return fmt.Errorf("away path references missing change %d", changePos)
		}
		away[changePos] = append(away[changePos], path)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load away paths: %w", err)
	}

	for pos, paths := range away {
		dicts[pos]["awayPaths"] = paths
	}
	return nil
}

// loadHunks appends each hunk row to its change's dictionary, in order.
func (s *SQLiteStore) loadHunks(id string, dicts []diff.Dictionary) error {
	rows, err := s.db.Query(`
		SELECT change_position, old_offset, old_length, new_offset, new_length,
			add_lines, del_lines, missing_old_newline, missing_new_newline, corpus
		FROM hunks
		WHERE diff_id = ?
		ORDER BY change_position, position
	`, id)
	if err != nil {
		return fmt.Errorf("load hunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			changePos                               int
			oldOffset, oldLength, newOffset, newLen int
			addLines, delLines, missingOld, missNew int
			corpus                                  string
		)
		if err := rows.Scan(&changePos, &oldOffset, &oldLength, &newOffset, &newLen,
			&addLines, &delLines, &missingOld, &missNew, &corpus); err != nil {
			return fmt.Errorf("scan hunk: %w", err)
		}
		if changePos < 0 || changePos >= len(dicts) {
			return fmt.Errorf("hunk references missing change %d", changePos)
		}
		d := dicts[changePos]
		d["hunks"] = append(d["hunks"].([]any), diff.Dictionary{
			"corpus":              corpus,
			"oldOffset":           oldOffset,
			"oldLength":           oldLength,
			"newOffset":           newOffset,
			"newLength":           newLen,
			"addLines":            addLines,
			"delLines":            delLines,
			"isMissingOldNewline": missingOld != 0,
			"isMissingNewNewline": missNew != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load hunks: %w", err)
	}
	return nil
}

// ListDiffs returns stored diffs, newest first.
// The limit parameter controls how many records to return (0 = default limit).
func (s *SQLiteStore) ListDiffs(limit int) ([]*DiffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultListLimit
	}

	// rowid breaks ties between diffs saved within the same timestamp tick.
	rows, err := s.db.Query(`
		SELECT id, source, created_at, change_count, files, hunks, added_lines, deleted_lines, binary_files, byte_size
		FROM diffs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list diffs: %w", err)
	}
	defer rows.Close()

	records := make([]*DiffRecord, 0)
	for rows.Next() {
		rec, err := scanDiffRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diff: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list diffs: %w", err)
	}
	return records, nil
}

// DeleteDiff removes a diff along with its changes, hunks and away paths.
// Returns ErrDiffNotFound if no record has the given ID.
func (s *SQLiteStore) DeleteDiff(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: deleting diff %s", id)

	// The child rows go through ON DELETE CASCADE, which needs the
	// foreign_keys pragma set in NewSQLiteStore.
	result, err := s.db.Exec("DELETE FROM diffs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete diff: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete diff: %w", err)
	}
	if n == 0 {
		return ErrDiffNotFound
	}
	return nil
}

// CountDiffs returns the number of stored diffs.
func (s *SQLiteStore) CountDiffs() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM diffs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count diffs: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiffRecord(row rowScanner) (*DiffRecord, error) {
	rec := &DiffRecord{}
	var createdAt string
	err := row.Scan(&rec.ID, &rec.Source, &createdAt, &rec.Changes, &rec.Files,
		&rec.Hunks, &rec.AddedLines, &rec.DeletedLines, &rec.BinaryFiles, &rec.ByteSize)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return rec, nil
}
