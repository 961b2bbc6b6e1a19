package storage

import (
	"fmt"
	"time"
)

// MetricsStore records parse outcomes for the /api/metrics endpoint.
type MetricsStore interface {
	RecordParse(source string, duration time.Duration, errorCode string) error
	ParseMetrics(window time.Duration) (*ParseMetrics, error)
	CleanupMetrics(retention time.Duration) (int64, error)
}

// ParseMetrics summarizes parse events within a time window.
type ParseMetrics struct {
	Window   time.Duration  `json:"-"`
	Total    int            `json:"total"`
	Failures int            `json:"failures"`
	P95Ms    int64          `json:"p95Ms"`
	ByCode   map[string]int `json:"byCode"`
}

// RecordParse inserts one parse outcome. errorCode is empty for success.
func (s *SQLiteStore) RecordParse(source string, duration time.Duration, errorCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO parse_events (source, duration_ms, error_code, recorded_at) VALUES (?, ?, ?, ?)",
		source, duration.Milliseconds(), errorCode, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record parse: %w", err)
	}
	return nil
}

// ParseMetrics returns counts and the p95 duration of parses in the window.
func (s *SQLiteStore) ParseMetrics(window time.Duration) (*ParseMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := formatTime(time.Now().Add(-window))
	m := &ParseMetrics{Window: window, ByCode: make(map[string]int)}

	err := s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(error_code != ''), 0) FROM parse_events WHERE recorded_at >= ?",
		cutoff,
	).Scan(&m.Total, &m.Failures)
	if err != nil {
		return nil, fmt.Errorf("query parse counts: %w", err)
	}
	if m.Total == 0 {
		return m, nil
	}

	// p95: the value at index ceil(0.95 * count) when sorted ascending.
	offset := int(float64(m.Total)*0.95) - 1
	if offset < 0 {
		offset = 0
	}
	err = s.db.QueryRow(
		"SELECT duration_ms FROM parse_events WHERE recorded_at >= ? ORDER BY duration_ms ASC LIMIT 1 OFFSET ?",
		cutoff, offset,
	).Scan(&m.P95Ms)
	if err != nil {
		return nil, fmt.Errorf("query parse p95: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT error_code, COUNT(*) FROM parse_events WHERE recorded_at >= ? AND error_code != '' GROUP BY error_code",
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query parse failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scan parse failures: %w", err)
		}
		m.ByCode[code] = n
	}
	return m, rows.Err()
}

// CleanupMetrics deletes parse events older than retention.
// Returns the number of rows deleted.
func (s *SQLiteStore) CleanupMetrics(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-retention))
	result, err := s.db.Exec("DELETE FROM parse_events WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup parse events: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
