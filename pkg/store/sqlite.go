package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/civiclab/ballotsim/pkg/runner"
)

// Store keeps the local run-history database backing `--stats`.
type Store struct {
	db *sql.DB
}

// NewStore opens (and migrates) the SQLite database at dbPath.
// WAL mode is enabled for durability under concurrent readers.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		requested INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		failed INTEGER NOT NULL,

		-- tallies as JSON blobs; read back whole, never queried by key
		by_condition JSON NOT NULL,
		by_cluster JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

// SaveSummary inserts one finished run. It implements
// runner.SummaryStore.
func (s *Store) SaveSummary(ctx context.Context, sum runner.Summary) error {
	byCondition, err := json.Marshal(sum.ByCondition)
	if err != nil {
		return fmt.Errorf("failed to marshal condition tally: %w", err)
	}
	byCluster, err := json.Marshal(sum.ByCluster)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster tally: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, duration_ms, requested, completed, failed, by_condition, by_cluster)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.StartedAt, sum.Duration.Milliseconds(),
		sum.Requested, sum.Completed, sum.Failed,
		string(byCondition), string(byCluster))
	if err != nil {
		return fmt.Errorf("failed to insert run summary: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]runner.Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, duration_ms, requested, completed, failed, by_condition, by_cluster
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []runner.Summary
	for rows.Next() {
		var sum runner.Summary
		var durationMS int64
		var byCondition, byCluster string
		if err := rows.Scan(&sum.RunID, &sum.StartedAt, &durationMS,
			&sum.Requested, &sum.Completed, &sum.Failed, &byCondition, &byCluster); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(byCondition), &sum.ByCondition); err != nil {
			return nil, fmt.Errorf("failed to parse condition tally: %w", err)
		}
		if err := json.Unmarshal([]byte(byCluster), &sum.ByCluster); err != nil {
			return nil, fmt.Errorf("failed to parse cluster tally: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Totals aggregates all recorded runs for the `--stats` view.
type Totals struct {
	Runs      int
	Requested int
	Completed int
	Failed    int
}

// Stats computes aggregate totals across the whole run history.
func (s *Store) Stats(ctx context.Context) (Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(requested), 0), COALESCE(SUM(completed), 0), COALESCE(SUM(failed), 0)
		FROM runs`)
	if err := row.Scan(&t.Runs, &t.Requested, &t.Completed, &t.Failed); err != nil {
		return Totals{}, fmt.Errorf("failed to aggregate run history: %w", err)
	}
	return t, nil
}
