package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/pilotlog/internal/client/models"
	"github.com/dmitrijs2005/pilotlog/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, e models.OutboxEntry) error {
	data, err := models.EncodePayload(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode outbox entry %s: %w", e.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO outbox (id, type, collection, record_id, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Type()), string(e.Collection), e.RecordID(), string(data), e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append outbox entry %s: %w", e.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, type, collection, data, timestamp
		FROM outbox
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var result []models.OutboxEntry
	for rows.Next() {
		var (
			e    models.OutboxEntry
			t    string
			c    string
			data string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &t, &c, &data, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		p, err := models.DecodePayload(models.MutationType(t), json.RawMessage(data))
		if err != nil {
			return nil, fmt.Errorf("outbox entry %s: %w", e.ID, err)
		}
		e.Collection = models.Collection(c)
		e.Payload = p
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove outbox entry %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountForRecord(ctx context.Context, c models.Collection, recordID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE collection = ? AND record_id = ?`,
		string(c), recordID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox entries for %s/%s: %w", c, recordID, err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountForRecordByType(ctx context.Context, c models.Collection, recordID string, t models.MutationType) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE collection = ? AND record_id = ? AND type = ?`,
		string(c), recordID, string(t),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s outbox entries for %s/%s: %w", t, c, recordID, err)
	}
	return n, nil
}
