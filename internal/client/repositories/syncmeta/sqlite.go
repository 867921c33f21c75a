// Package syncmeta persists the pull watermark used for incremental sync.
package syncmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pilotlog/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (int64, bool, error) {
	var ts int64
	err := r.db.QueryRowContext(ctx, `SELECT last_sync_at FROM sync_meta WHERE key = ?`, key).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get sync_meta[%s]: %w", key, err)
	}
	return ts, true, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, last_sync_at) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET last_sync_at = excluded.last_sync_at
	`, key, ts)
	if err != nil {
		return fmt.Errorf("failed to set sync_meta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_meta WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete sync_meta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, last_sync_at FROM sync_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync_meta: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var key string
		var ts int64
		if err := rows.Scan(&key, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan sync_meta row: %w", err)
		}
		result[key] = ts
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync_meta rows: %w", err)
	}

	return result, nil
}
