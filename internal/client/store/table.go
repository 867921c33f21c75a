package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pilotlog/internal/client/conflict"
	"github.com/dmitrijs2005/pilotlog/internal/client/models"
	"github.com/dmitrijs2005/pilotlog/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/dbx"
)

// metaKeys are owned by the store and cannot be patched by callers.
var metaKeys = map[string]bool{
	"id":         true,
	"mongoId":    true,
	"syncStatus": true,
	"createdAt":  true,
	"updatedAt":  true,
}

// Table is the typed CRUD surface of one entity collection. Every mutation
// writes the row and its outbox entry in one transaction. Returned entities
// are copies owned by the caller.
type Table[E models.Entity] struct {
	s          *Store
	collection models.Collection
	newEntity  func() E
	keyCols    []string
	keyVals    func(E) []any

	upsertSQL string
}

func newTable[E models.Entity](s *Store, c models.Collection, newEntity func() E, keyCols []string, keyVals func(E) []any) *Table[E] {
	cols := append([]string{"id", "mongo_id", "sync_status", "created_at", "updated_at", "data"}, keyCols...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sets := make([]string, 0, len(cols)-1)
	for _, col := range cols[1:] {
		sets = append(sets, col+" = excluded."+col)
	}

	return &Table[E]{
		s:          s,
		collection: c,
		newEntity:  newEntity,
		keyCols:    keyCols,
		keyVals:    keyVals,
		upsertSQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
			c, strings.Join(cols, ", "), marks, strings.Join(sets, ", "),
		),
	}
}

// Collection reports the collection this table stores.
func (t *Table[E]) Collection() models.Collection { return t.collection }

// Add stores a new record built from the domain fields of fields. Identity and
// bookkeeping supplied by the caller are ignored.
func (t *Table[E]) Add(ctx context.Context, fields E) (E, error) {
	return dbx.InTx(ctx, t.s.db, func(ctx context.Context, tx dbx.DBTX) (E, error) {
		return t.add(ctx, tx, fields)
	})
}

// AddMany adds all records in one transaction. Any failure rolls back the batch.
func (t *Table[E]) AddMany(ctx context.Context, batch []E) ([]E, error) {
	return dbx.InTx(ctx, t.s.db, func(ctx context.Context, tx dbx.DBTX) ([]E, error) {
		out := make([]E, 0, len(batch))
		for i, fields := range batch {
			e, err := t.add(ctx, tx, fields)
			if err != nil {
				return nil, fmt.Errorf("batch item %d: %w", i, err)
			}
			out = append(out, e)
		}
		return out, nil
	})
}

func (t *Table[E]) add(ctx context.Context, tx dbx.DBTX, fields E) (E, error) {
	var zero E
	raw, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("failed to encode %s record: %w", t.collection, err)
	}
	e, _, err := t.decode(raw)
	if err != nil {
		return zero, err
	}

	now := t.s.clock.Millis()
	*e.EntityMeta() = models.Meta{
		ID:         t.s.newID(),
		SyncStatus: models.SyncStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	e.Normalize()

	rec, err := t.put(ctx, tx, e)
	if err != nil {
		return zero, err
	}
	if err := t.enqueue(ctx, tx, models.CreatePayload{ID: e.EntityMeta().ID, Record: rec}, now); err != nil {
		return zero, err
	}
	return e, nil
}

// Update merges patch, keyed by JSON field name, over the stored record.
// It returns the zero value when id is unknown.
func (t *Table[E]) Update(ctx context.Context, id string, patch map[string]any) (E, error) {
	return t.mutate(ctx, id, func(e E) (E, error) {
		return t.applyPatch(e, patch)
	})
}

// Modify loads the record, lets fn change its domain fields and stores the
// result. Changes fn makes to identity or bookkeeping are discarded. It returns
// the zero value when id is unknown.
func (t *Table[E]) Modify(ctx context.Context, id string, fn func(E) error) (E, error) {
	return t.mutate(ctx, id, func(e E) (E, error) {
		return e, fn(e)
	})
}

func (t *Table[E]) mutate(ctx context.Context, id string, change func(E) (E, error)) (E, error) {
	return dbx.InTx(ctx, t.s.db, func(ctx context.Context, tx dbx.DBTX) (E, error) {
		var zero E
		current, ok, err := t.findOne(ctx, tx, "id = ?", id)
		if err != nil || !ok {
			return zero, err
		}

		meta := *current.EntityMeta()
		e, err := change(current)
		if err != nil {
			return zero, err
		}
		now := t.s.clock.Millis()
		meta.UpdatedAt = now
		meta.SyncStatus = models.SyncStatusPending
		*e.EntityMeta() = meta
		e.Normalize()

		rec, err := t.put(ctx, tx, e)
		if err != nil {
			return zero, err
		}
		if err := t.enqueue(ctx, tx, models.UpdatePayload{ID: meta.ID, Record: rec}, now); err != nil {
			return zero, err
		}
		return e, nil
	})
}

// Delete removes the record and queues a tombstone carrying its mongoId.
// It returns false when id is unknown.
func (t *Table[E]) Delete(ctx context.Context, id string) (bool, error) {
	return dbx.InTx(ctx, t.s.db, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		e, ok, err := t.findOne(ctx, tx, "id = ?", id)
		if err != nil || !ok {
			return false, err
		}
		if err := t.remove(ctx, tx, id); err != nil {
			return false, err
		}
		meta := e.EntityMeta()
		p := models.DeletePayload{ID: meta.ID, MongoID: meta.MongoID}
		if err := t.enqueue(ctx, tx, p, t.s.clock.Millis()); err != nil {
			return false, err
		}
		return true, nil
	})
}

// GetByID returns the record or the zero value when absent.
func (t *Table[E]) GetByID(ctx context.Context, id string) (E, error) {
	e, _, err := t.findOne(ctx, t.s.db, "id = ?", id)
	return e, err
}

// GetByMongoID returns the record linked to a server id, or the zero value.
func (t *Table[E]) GetByMongoID(ctx context.Context, mongoID string) (E, error) {
	e, _, err := t.findOne(ctx, t.s.db, "mongo_id = ?", mongoID)
	return e, err
}

// GetAll returns every record, oldest first.
func (t *Table[E]) GetAll(ctx context.Context) ([]E, error) {
	return t.list(ctx, t.s.db, "", "created_at, id")
}

// GetPending returns records whose last change is not yet acknowledged.
func (t *Table[E]) GetPending(ctx context.Context) ([]E, error) {
	return t.list(ctx, t.s.db, "sync_status = ?", "created_at, id", string(models.SyncStatusPending))
}

// Count returns the number of stored records.
func (t *Table[E]) Count(ctx context.Context) (int, error) {
	return t.countWhere(ctx, "")
}

// CountByStatus counts records carrying the given sync status.
func (t *Table[E]) CountByStatus(ctx context.Context, status models.SyncStatus) (int, error) {
	return t.countWhere(ctx, "WHERE sync_status = ?", string(status))
}

func (t *Table[E]) countWhere(ctx context.Context, where string, args ...any) (int, error) {
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", t.collection, where)
	if err := t.s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.collection, err)
	}
	return n, nil
}

// upsert merges one server record. It never touches the outbox.
func (t *Table[E]) upsert(ctx context.Context, tx dbx.DBTX, raw json.RawMessage) (conflict.Outcome, error) {
	var probe struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	e, incoming, err := t.decode(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	if incoming.ID == "" && incoming.MongoID == "" {
		return 0, fmt.Errorf("%w: record has neither id nor mongoId", common.ErrMalformedRecord)
	}
	e.Normalize()

	d, err := conflict.Resolve(ctx, incoming, probe.Deleted, tableFinder[E]{t: t, db: tx})
	if err != nil {
		return 0, err
	}
	if d.Outcome == conflict.Insert && incoming.ID != "" {
		// deleted here, delete not pushed yet
		n, err := outbox.NewSQLiteRepository(tx).CountForRecordByType(ctx, t.collection, incoming.ID, models.MutationDelete)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return conflict.Discard, nil
		}
	}

	switch d.Outcome {
	case conflict.Insert, conflict.Overwrite:
		meta := d.Meta
		if meta.ID == "" {
			meta.ID = t.s.newID()
		}
		*e.EntityMeta() = meta
		if _, err := t.put(ctx, tx, e); err != nil {
			return 0, err
		}
	case conflict.Remove:
		if err := t.remove(ctx, tx, d.Existing.ID); err != nil {
			return 0, err
		}
	}
	return d.Outcome, nil
}

func (t *Table[E]) put(ctx context.Context, db dbx.DBTX, e E) (json.RawMessage, error) {
	rec, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", t.collection, err)
	}
	m := e.EntityMeta()
	args := []any{m.ID, dbx.NullString(m.MongoID), string(m.SyncStatus), m.CreatedAt, m.UpdatedAt, string(rec)}
	args = append(args, t.keyVals(e)...)

	if _, err := db.ExecContext(ctx, t.upsertSQL, args...); err != nil {
		return nil, fmt.Errorf("failed to store %s/%s: %w", t.collection, m.ID, err)
	}
	return rec, nil
}

func (t *Table[E]) remove(ctx context.Context, db dbx.DBTX, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.collection)
	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", t.collection, id, err)
	}
	return nil
}

func (t *Table[E]) enqueue(ctx context.Context, tx dbx.DBTX, p models.Payload, ts int64) error {
	return outbox.NewSQLiteRepository(tx).Append(ctx, models.OutboxEntry{
		ID:         t.s.newID(),
		Collection: t.collection,
		Payload:    p,
		Timestamp:  ts,
	})
}

func (t *Table[E]) findOne(ctx context.Context, db dbx.DBTX, where string, args ...any) (E, bool, error) {
	var zero E
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectCols, t.collection, where)
	row := db.QueryRowContext(ctx, q, args...)

	e, err := t.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to get %s: %w", t.collection, err)
	}
	return e, true, nil
}

func (t *Table[E]) list(ctx context.Context, db dbx.DBTX, where, order string, args ...any) ([]E, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", selectCols, t.collection)
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + order

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.collection, err)
	}
	defer rows.Close()

	result := []E{}
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.collection, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", t.collection, err)
	}
	return result, nil
}

const selectCols = "id, mongo_id, sync_status, created_at, updated_at, data"

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row. The meta columns are authoritative over the copy of
// the bookkeeping fields inside the data blob.
func (t *Table[E]) scan(row scanner) (E, error) {
	var (
		zero    E
		meta    models.Meta
		mongoID sql.NullString
		status  string
		data    string
	)
	if err := row.Scan(&meta.ID, &mongoID, &status, &meta.CreatedAt, &meta.UpdatedAt, &data); err != nil {
		return zero, err
	}
	e, _, err := t.decode(json.RawMessage(data))
	if err != nil {
		return zero, err
	}
	meta.MongoID = mongoID.String
	meta.SyncStatus = models.SyncStatus(status)
	*e.EntityMeta() = meta
	return e, nil
}

func (t *Table[E]) decode(raw json.RawMessage) (E, models.Meta, error) {
	var zero E
	e := t.newEntity()
	if err := json.Unmarshal(raw, e); err != nil {
		return zero, models.Meta{}, fmt.Errorf("decode %s record: %w", t.collection, err)
	}
	return e, *e.EntityMeta(), nil
}

// tableFinder adapts a table, bound to a transaction, to conflict.Finder.
type tableFinder[E models.Entity] struct {
	t  *Table[E]
	db dbx.DBTX
}

func (f tableFinder[E]) FindByMongoID(ctx context.Context, mongoID string) (*models.Meta, error) {
	return f.find(ctx, "mongo_id = ?", mongoID)
}

func (f tableFinder[E]) FindByID(ctx context.Context, id string) (*models.Meta, error) {
	return f.find(ctx, "id = ?", id)
}

func (f tableFinder[E]) find(ctx context.Context, where string, arg string) (*models.Meta, error) {
	e, ok, err := f.t.findOne(ctx, f.db, where, arg)
	if err != nil || !ok {
		return nil, err
	}
	m := *e.EntityMeta()
	return &m, nil
}

// applyPatch returns a fresh entity with patch laid over e. Meta keys in the
// patch are skipped; a value of the wrong type is a validation error.
func (t *Table[E]) applyPatch(e E, patch map[string]any) (E, error) {
	var zero E
	current, err := json.Marshal(e)
	if err != nil {
		return zero, err
	}
	dec := json.NewDecoder(bytes.NewReader(current))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return zero, err
	}
	for k, v := range patch {
		if metaKeys[k] {
			continue
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	out, _, err := t.decode(merged)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return out, nil
}
