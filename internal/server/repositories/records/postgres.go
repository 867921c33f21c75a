// Package records provides the PostgreSQL-backed repository of synced
// logbook records.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/dbx"
	"github.com/dmitrijs2005/pilotlog/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `mongo_id, collection, client_id, data, created_at, updated_at, modified_at, deleted`

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*models.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) FindByMongoID(ctx context.Context, collection, mongoID string) (*models.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM records
		WHERE collection = $1 AND mongo_id = $2`
	return r.findOne(ctx, query, collection, mongoID)
}

func (r *PostgresRepository) FindByClientID(ctx context.Context, collection, clientID string) (*models.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM records
		WHERE collection = $1 AND client_id = $2`
	return r.findOne(ctx, query, collection, clientID)
}

// Insert stores a new record. MongoID must already be assigned.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (mongo_id, collection, client_id, data, created_at, updated_at, modified_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.MongoID, rec.Collection, rec.ClientID, string(rec.Data),
		rec.CreatedAt, rec.UpdatedAt, rec.ModifiedAt, rec.Deleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of an existing record.
func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) error {
	query := `
		UPDATE records SET
			data = $2,
			created_at = $3,
			updated_at = $4,
			modified_at = $5,
			deleted = $6
		WHERE mongo_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.MongoID, string(rec.Data), rec.CreatedAt, rec.UpdatedAt, rec.ModifiedAt, rec.Deleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// SelectUpdated returns records of collection written after since (server
// clock, ms), tombstones included, oldest first.
func (r *PostgresRepository) SelectUpdated(ctx context.Context, collection string, since int64) ([]*models.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM records
		WHERE collection = $1 AND modified_at > $2
		ORDER BY modified_at, mongo_id`
	rows, err := r.db.QueryContext(ctx, query, collection, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var rec models.Record
	var data []byte
	if err := row.Scan(
		&rec.MongoID, &rec.Collection, &rec.ClientID, &data,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.ModifiedAt, &rec.Deleted,
	); err != nil {
		return nil, err
	}
	rec.Data = data
	return &rec, nil
}
