package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// HistoryRepository implements domain.HistoryStore for SQLite
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Get returns the value stored under key
func (r *HistoryRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM history WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get history value: %w", err)
	}
	return value, true, nil
}

// Set inserts or replaces the value stored under key
func (r *HistoryRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO history (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, timeNow().UTC())
	if err != nil {
		return fmt.Errorf("failed to set history value: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *HistoryRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM history WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete history value: %w", err)
	}
	return nil
}

// Count returns the number of stored keys
func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history values: %w", err)
	}
	return n, nil
}
