package store

import (
	"context"
	"fmt"
	"time"
)

// HintEntry represents a row in the hints table.
type HintEntry struct {
	ID        string
	Dialect   string
	Resource  string
	Module    string
	CreatedAt time.Time
}

// AddHint inserts or replaces the module hint for a dialect resource.
func (s *Store) AddHint(ctx context.Context, dialect, resource, module string) error {
	id := fmt.Sprintf("hint_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO hints (id, dialect, resource, module) VALUES (?, ?, ?, ?)`,
		id, dialect, resource, module)
	return err
}

// GetHints returns resource -> module for one dialect, ready to embed in a prompt.
func (s *Store) GetHints(ctx context.Context, dialect string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource, module FROM hints WHERE dialect = ?`, dialect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hints := make(map[string]string)
	for rows.Next() {
		var resource, module string
		if err := rows.Scan(&resource, &module); err != nil {
			return nil, err
		}
		hints[resource] = module
	}
	return hints, rows.Err()
}

// ListHints returns all hints, optionally filtered by dialect.
func (s *Store) ListHints(ctx context.Context, dialect string) ([]HintEntry, error) {
	query := `SELECT id, dialect, resource, module, created_at FROM hints`
	var args []interface{}
	if dialect != "" {
		query += ` WHERE dialect = ?`
		args = append(args, dialect)
	}
	query += ` ORDER BY dialect, resource`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HintEntry
	for rows.Next() {
		var e HintEntry
		if err := rows.Scan(&e.ID, &e.Dialect, &e.Resource, &e.Module, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteHint removes a hint by ID.
func (s *Store) DeleteHint(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hints WHERE id = ?`, id)
	return err
}
