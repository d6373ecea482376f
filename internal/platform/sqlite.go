package platform

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	metric_key   TEXT NOT NULL,
	context_key  TEXT NOT NULL,
	value        REAL,
	recorded_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS events_metric ON events(metric_key);
`

// SQLiteSink records dry-run events in a SQLite database so the calibrated outcomes
// can be inspected after the run.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (or creates) the database at path and runs migrations.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Concurrent producers write through one connection; sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) Record(e Event) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	var value any
	if e.Value != nil {
		value = *e.Value
	}
	_, err := s.db.Exec(
		`INSERT INTO events (metric_key, context_key, value, recorded_at) VALUES (?, ?, ?, ?)`,
		e.Metric, e.ContextKey, value, e.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Summary aggregates the recorded events per metric, sorted by metric key.
func (s *SQLiteSink) Summary() ([]MetricSummary, error) {
	rows, err := s.db.Query(
		`SELECT metric_key, COUNT(*), COUNT(value), COALESCE(AVG(value), 0)
		 FROM events GROUP BY metric_key ORDER BY metric_key`,
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var out []MetricSummary
	for rows.Next() {
		var m MetricSummary
		if err := rows.Scan(&m.Metric, &m.Count, &m.Numeric, &m.Mean); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
