package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/playconv/internal"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversion_requests (
		id TEXT PRIMARY KEY,
		batch_id TEXT,
		identifier TEXT NOT NULL,
		dialect TEXT NOT NULL,
		mode TEXT NOT NULL,
		backend TEXT NOT NULL,
		model TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversion_results (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		status TEXT NOT NULL,
		output_text TEXT,
		latency_ms INTEGER,
		diagnostics TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (request_id) REFERENCES conversion_requests(id)
	);

	-- conversion_memory keys generated output by normalised source and backend identity
	CREATE TABLE IF NOT EXISTS conversion_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		mode TEXT NOT NULL,
		backend TEXT NOT NULL,
		model TEXT NOT NULL,
		hints TEXT NOT NULL DEFAULT '',
		output_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, mode, backend, model, hints)
	);

	-- batch_checkpoints tracks batch runs for resume support
	CREATE TABLE IF NOT EXISTS batch_checkpoints (
		id TEXT PRIMARY KEY,
		input_dir TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- batch_items records every item of a batch that reached a terminal status
	CREATE TABLE IF NOT EXISTS batch_items (
		checkpoint_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (checkpoint_id, item_id),
		FOREIGN KEY (checkpoint_id) REFERENCES batch_checkpoints(id)
	);

	-- hints maps dialect resources to the Ansible module the model should prefer
	CREATE TABLE IF NOT EXISTS hints (
		id TEXT PRIMARY KEY,
		dialect TEXT NOT NULL,
		resource TEXT NOT NULL,
		module TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(dialect, resource)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON conversion_memory(source_text, mode, backend, model, hints);
	CREATE INDEX IF NOT EXISTS idx_results_request ON conversion_results(request_id);
	CREATE INDEX IF NOT EXISTS idx_batch_items ON batch_items(checkpoint_id);
	CREATE INDEX IF NOT EXISTS idx_hints_lookup ON hints(dialect);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RunEntry is one row of run history: a request joined with its result.
type RunEntry struct {
	ID          string
	BatchID     string
	Identifier  string
	Dialect     string
	Mode        string
	Backend     string
	Model       string
	Status      string
	LatencyMs   int64
	Diagnostics string
	CreatedAt   time.Time
}

// RunStats summarises run history.
type RunStats struct {
	Total     int
	Succeeded int
	Fallback  int
	Failed    int
	AvgMs     float64
}

func (s *Store) SaveRequest(ctx context.Context, req internal.ConversionRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversion_requests (id, batch_id, identifier, dialect, mode, backend, model, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.BatchID, req.Identifier, req.Dialect, string(req.Mode), req.Backend, req.Model, req.Timestamp)
	return err
}

// SaveResult stores the outcome of a request. diagnosticsJSON is stored verbatim.
func (s *Store) SaveResult(ctx context.Context, requestID, status, outputText string, latencyMs int64, diagnosticsJSON string) error {
	id := fmt.Sprintf("%s_result", requestID)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversion_results (id, request_id, status, output_text, latency_ms, diagnostics) VALUES (?, ?, ?, ?, ?, ?)`,
		id, requestID, status, outputText, latencyMs, diagnosticsJSON)
	return err
}

// ListRuns returns run history, newest first. limit <= 0 returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	query := `
		SELECT r.id, COALESCE(r.batch_id, ''), r.identifier, r.dialect, r.mode, r.backend, COALESCE(r.model, ''),
			COALESCE(res.status, ''), COALESCE(res.latency_ms, 0), COALESCE(res.diagnostics, ''), r.created_at
		FROM conversion_requests r
		LEFT JOIN conversion_results res ON res.request_id = r.id
		ORDER BY r.created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Identifier, &e.Dialect, &e.Mode, &e.Backend, &e.Model,
			&e.Status, &e.LatencyMs, &e.Diagnostics, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RunStats returns summary statistics for run history.
func (s *Store) RunStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'fallback' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM conversion_results`).Scan(
		&stats.Total,
		&stats.Succeeded,
		&stats.Fallback,
		&stats.Failed,
		&stats.AvgMs,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteRun removes a request and its result.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversion_results WHERE request_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversion_requests WHERE id = ?`, id)
	return err
}

// ClearRuns removes all run history and returns the number of requests removed.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversion_results`); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversion_requests`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent memory key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
