// Package store is the durable local-first store of the logbook client.
//
// A Store owns one SQLite database holding the four entity tables, the outbox
// and the sync watermark. It is constructed once at process start and passed
// explicitly to the sync orchestrator and to every collaborator; there is no
// package-level instance.
//
// All local mutations go through the typed tables (Flights, Aircraft,
// Airports, Personnel) and append an outbox entry in the same transaction.
// Server-originated writes go through UpsertFromServer, the only write path
// that leaves the outbox alone.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pilotlog/internal/client/conflict"
	"github.com/dmitrijs2005/pilotlog/internal/client/migrations"
	"github.com/dmitrijs2005/pilotlog/internal/client/models"
	"github.com/dmitrijs2005/pilotlog/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/pilotlog/internal/client/repositories/syncmeta"
	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/dbx"
	"github.com/dmitrijs2005/pilotlog/internal/logging"
	"github.com/dmitrijs2005/pilotlog/internal/timex"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Store is the local logbook database with one table per collection.
type Store struct {
	db    *sql.DB
	clock timex.Clock
	newID func() string
	log   logging.Logger

	Flights   *FlightTable
	Aircraft  *AircraftTable
	Airports  *AirportTable
	Personnel *PersonnelTable

	upserters map[models.Collection]upserter
}

type upserter interface {
	upsert(ctx context.Context, tx dbx.DBTX, raw json.RawMessage) (conflict.Outcome, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.SyncStatus) (int, error)
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the clock used for createdAt, updatedAt and outbox timestamps.
func WithClock(c timex.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithIDGenerator replaces uuid.NewString for record and entry ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// RunMigrations applies the embedded client schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}
	return nil
}

// Open opens (creating when needed) the SQLite database at dsn, migrates it,
// and returns a ready Store.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer process per store. A single connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s, err := New(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database and migrates it.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	s := &Store{
		db:    db,
		newID: uuid.NewString,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Flights = &FlightTable{newTable(s, models.CollectionFlights,
		func() *models.FlightLog { return &models.FlightLog{} },
		[]string{"date", "registration"},
		func(f *models.FlightLog) []any { return []any{f.Date, f.Registration} },
	)}
	s.Aircraft = &AircraftTable{newTable(s, models.CollectionAircraft,
		func() *models.Aircraft { return &models.Aircraft{} },
		[]string{"registration"},
		func(a *models.Aircraft) []any { return []any{a.Registration} },
	)}
	s.Airports = &AirportTable{newTable(s, models.CollectionAirports,
		func() *models.Airport { return &models.Airport{} },
		[]string{"icao", "iata"},
		func(a *models.Airport) []any { return []any{a.ICAO, a.IATA} },
	)}
	s.Personnel = &PersonnelTable{newTable(s, models.CollectionPersonnel,
		func() *models.Personnel { return &models.Personnel{} },
		[]string{"name"},
		func(p *models.Personnel) []any { return []any{p.Name} },
	)}

	s.upserters = map[models.Collection]upserter{
		models.CollectionFlights:   s.Flights.Table,
		models.CollectionAircraft:  s.Aircraft.Table,
		models.CollectionAirports:  s.Airports.Table,
		models.CollectionPersonnel: s.Personnel.Table,
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) table(c models.Collection) (upserter, error) {
	t, ok := s.upserters[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownCollection, c)
	}
	return t, nil
}

// UpsertFromServer merges one pulled record into collection c by
// last-writer-wins. Malformed records fail with common.ErrMalformedRecord.
func (s *Store) UpsertFromServer(ctx context.Context, c models.Collection, raw json.RawMessage) (conflict.Outcome, error) {
	t, err := s.table(c)
	if err != nil {
		return 0, err
	}
	outcome, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (conflict.Outcome, error) {
		return t.upsert(ctx, tx, raw)
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug(ctx, "server record merged", "collection", c, "outcome", outcome.String())
	return outcome, nil
}

// PendingEntries returns the outbox, oldest first.
func (s *Store) PendingEntries(ctx context.Context) ([]models.OutboxEntry, error) {
	return outbox.NewSQLiteRepository(s.db).List(ctx)
}

// OutboxSize returns the number of queued mutations.
func (s *Store) OutboxSize(ctx context.Context) (int, error) {
	return outbox.NewSQLiteRepository(s.db).Count(ctx)
}

// Acknowledge records a successful push of e. In one transaction it links
// mongoID to the record when the record has none yet, sets the record synced
// unless later entries for it are still queued, and removes e from the outbox.
// Acknowledging the same entry twice keeps the first linked mongoId.
func (s *Store) Acknowledge(ctx context.Context, e models.OutboxEntry, mongoID string) error {
	if _, err := s.table(e.Collection); err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ob := outbox.NewSQLiteRepository(tx)
		if err := ob.Remove(ctx, e.ID); err != nil {
			return err
		}
		remaining, err := ob.CountForRecord(ctx, e.Collection, e.RecordID())
		if err != nil {
			return err
		}
		status := models.SyncStatusSynced
		if remaining > 0 {
			status = models.SyncStatusPending
		}

		q := fmt.Sprintf(
			"UPDATE %s SET mongo_id = COALESCE(mongo_id, ?), sync_status = ? WHERE id = ?",
			e.Collection,
		)
		if _, err := tx.ExecContext(ctx, q, dbx.NullString(mongoID), string(status), e.RecordID()); err != nil {
			return fmt.Errorf("failed to link %s/%s: %w", e.Collection, e.RecordID(), err)
		}
		return nil
	})
}

// MarkFailed flags the record targeted by e as sync error. The entry stays queued.
func (s *Store) MarkFailed(ctx context.Context, e models.OutboxEntry) error {
	if _, err := s.table(e.Collection); err != nil {
		return err
	}
	q := fmt.Sprintf("UPDATE %s SET sync_status = ? WHERE id = ?", e.Collection)
	if _, err := s.db.ExecContext(ctx, q, string(models.SyncStatusError), e.RecordID()); err != nil {
		return fmt.Errorf("failed to mark %s/%s failed: %w", e.Collection, e.RecordID(), err)
	}
	return nil
}

// MongoIDOf returns the server id linked to a record, or "" when the record is
// unknown or not yet linked.
func (s *Store) MongoIDOf(ctx context.Context, c models.Collection, id string) (string, error) {
	if _, err := s.table(c); err != nil {
		return "", err
	}
	var mongoID sql.NullString
	q := fmt.Sprintf("SELECT mongo_id FROM %s WHERE id = ?", c)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&mongoID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read mongo_id of %s/%s: %w", c, id, err)
	}
	return mongoID.String, nil
}

// LastSyncAt returns the pull watermark, 0 before the first sync.
func (s *Store) LastSyncAt(ctx context.Context) (int64, error) {
	ts, _, err := syncmeta.NewSQLiteRepository(s.db).Get(ctx, syncmeta.LastSyncKey)
	return ts, err
}

func (s *Store) SetLastSyncAt(ctx context.Context, ts int64) error {
	return syncmeta.NewSQLiteRepository(s.db).Set(ctx, syncmeta.LastSyncKey, ts)
}

// CollectionStats is the per-collection summary used by status reporting.
type CollectionStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// Stats summarizes every collection.
func (s *Store) Stats(ctx context.Context) (map[models.Collection]CollectionStats, error) {
	out := make(map[models.Collection]CollectionStats, len(models.Collections))
	for _, c := range models.Collections {
		t := s.upserters[c]
		var st CollectionStats
		var err error
		if st.Total, err = t.Count(ctx); err != nil {
			return nil, err
		}
		if st.Pending, err = t.CountByStatus(ctx, models.SyncStatusPending); err != nil {
			return nil, err
		}
		if st.Failed, err = t.CountByStatus(ctx, models.SyncStatusError); err != nil {
			return nil, err
		}
		out[c] = st
	}
	return out, nil
}

// Snapshot reads every record of every collection.
func (s *Store) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{TakenAt: s.clock.Millis()}
	var err error
	if snap.Flights, err = s.Flights.GetAll(ctx); err != nil {
		return nil, err
	}
	if snap.Aircraft, err = s.Aircraft.GetAll(ctx); err != nil {
		return nil, err
	}
	if snap.Airports, err = s.Airports.GetAll(ctx); err != nil {
		return nil, err
	}
	if snap.Personnel, err = s.Personnel.GetAll(ctx); err != nil {
		return nil, err
	}
	if snap.Outbox, err = s.OutboxSize(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

// FlightTable adds flight lookups to the generic table.
type FlightTable struct {
	*Table[*models.FlightLog]
}

// ListByDate returns flights with from <= date <= to (YYYY-MM-DD, inclusive).
func (t *FlightTable) ListByDate(ctx context.Context, from, to string) ([]*models.FlightLog, error) {
	return t.list(ctx, t.s.db, "date >= ? AND date <= ?", "date, created_at, id", from, to)
}

type AircraftTable struct {
	*Table[*models.Aircraft]
}

// GetByRegistration matches the normalized registration, ignoring case.
func (t *AircraftTable) GetByRegistration(ctx context.Context, registration string) (*models.Aircraft, error) {
	reg := strings.ToUpper(strings.TrimSpace(registration))
	a, _, err := t.findOne(ctx, t.s.db, "registration = ? ORDER BY created_at LIMIT 1", reg)
	return a, err
}

type AirportTable struct {
	*Table[*models.Airport]
}

func (t *AirportTable) GetByICAO(ctx context.Context, icao string) (*models.Airport, error) {
	code := strings.ToUpper(strings.TrimSpace(icao))
	a, _, err := t.findOne(ctx, t.s.db, "icao = ? ORDER BY created_at LIMIT 1", code)
	return a, err
}

func (t *AirportTable) GetByIATA(ctx context.Context, iata string) (*models.Airport, error) {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return nil, nil
	}
	a, _, err := t.findOne(ctx, t.s.db, "iata = ? ORDER BY created_at LIMIT 1", code)
	return a, err
}

type PersonnelTable struct {
	*Table[*models.Personnel]
}

// GetByName matches the whitespace-normalized name, ignoring case.
func (t *PersonnelTable) GetByName(ctx context.Context, name string) (*models.Personnel, error) {
	n := strings.Join(strings.Fields(name), " ")
	p, _, err := t.findOne(ctx, t.s.db, "name = ? COLLATE NOCASE ORDER BY created_at LIMIT 1", n)
	return p, err
}
