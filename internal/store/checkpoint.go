package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BatchCheckpoint represents a batch run's checkpoint record.
type BatchCheckpoint struct {
	ID        string
	InputDir  string
	Mode      string
	Status    string
	CreatedAt time.Time
}

// CreateCheckpoint creates a checkpoint record under id. An empty id gets a
// generated one. Creating an existing id is a no-op.
func (s *Store) CreateCheckpoint(ctx context.Context, id, inputDir, mode string) (string, error) {
	if id == "" {
		id = fmt.Sprintf("cp_%d", time.Now().UnixNano())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO batch_checkpoints (id, input_dir, mode) VALUES (?, ?, ?)`,
		id, inputDir, mode)
	return id, err
}

// GetCheckpoint retrieves a checkpoint by ID.
func (s *Store) GetCheckpoint(ctx context.Context, checkpointID string) (*BatchCheckpoint, error) {
	var cp BatchCheckpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_dir, mode, status, created_at FROM batch_checkpoints WHERE id = ?`,
		checkpointID).Scan(&cp.ID, &cp.InputDir, &cp.Mode, &cp.Status, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint not found: %s", checkpointID)
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// SaveItem records the terminal status of one batch item.
func (s *Store) SaveItem(ctx context.Context, checkpointID, itemID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO batch_items (checkpoint_id, item_id, status) VALUES (?, ?, ?)`,
		checkpointID, itemID, status)
	return err
}

// CompletedItems returns item id -> status for every recorded item of a checkpoint.
func (s *Store) CompletedItems(ctx context.Context, checkpointID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, status FROM batch_items WHERE checkpoint_id = ?`,
		checkpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string]string)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		items[id] = status
	}
	return items, rows.Err()
}

// CompleteCheckpoint marks a checkpoint as completed.
func (s *Store) CompleteCheckpoint(ctx context.Context, checkpointID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batch_checkpoints SET status = 'completed', updated_at = ? WHERE id = ?`,
		time.Now(), checkpointID)
	return err
}
