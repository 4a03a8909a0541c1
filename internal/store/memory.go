package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MemoryKey identifies a stored output. Source is normalised on use. Hints
// is the HintsFingerprint of the hints sent with the prompt.
type MemoryKey struct {
	Source  string
	Mode    string
	Backend string
	Model   string
	Hints   string
}

// HintsFingerprint returns a stable digest of resource->module hints, or ""
// when there are none.
func HintsFingerprint(hints map[string]string) string {
	if len(hints) == 0 {
		return ""
	}
	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s\x00%s\n", k, hints[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// MemoryEntry is a row from the conversion_memory table.
type MemoryEntry struct {
	ID          string
	SourceText  string
	Mode        string
	Backend     string
	Model       string
	OutputText  string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// MemoryStats summarises conversion memory usage.
type MemoryStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

// Memory is the lookup surface the orchestrator uses.
type Memory interface {
	GetMemory(ctx context.Context, key MemoryKey) (string, bool, error)
	SaveMemory(ctx context.Context, key MemoryKey, output string) error
}

func (s *Store) GetMemory(ctx context.Context, key MemoryKey) (string, bool, error) {
	var output string
	var invalidated bool

	src := normalizeText(key.Source)
	err := s.db.QueryRowContext(ctx,
		`SELECT output_text, invalidated FROM conversion_memory WHERE source_text = ? AND mode = ? AND backend = ? AND model = ? AND hints = ?`,
		src, key.Mode, key.Backend, key.Model, key.Hints).Scan(&output, &invalidated)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversion_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND mode = ? AND backend = ? AND model = ? AND hints = ?`,
		time.Now(), src, key.Mode, key.Backend, key.Model, key.Hints)

	return output, true, err
}

func (s *Store) SaveMemory(ctx context.Context, key MemoryKey, output string) error {
	id := fmt.Sprintf("mem_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversion_memory (id, source_text, mode, backend, model, hints, output_text, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		id, normalizeText(key.Source), key.Mode, key.Backend, key.Model, key.Hints, output, time.Now(), time.Now())
	return err
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE conversion_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// DeleteMemory permanently removes a memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversion_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes all memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversion_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, mode, backend, model, output_text, usage_count, invalidated, last_used FROM conversion_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.Mode, &e.Backend, &e.Model, &e.OutputText, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// MemoryStats returns summary statistics for conversion memory.
func (s *Store) MemoryStats(ctx context.Context) (*MemoryStats, error) {
	stats := &MemoryStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM conversion_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
