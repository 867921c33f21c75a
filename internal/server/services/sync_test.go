package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/dbx"
	"github.com/dmitrijs2005/pilotlog/internal/server/config"
	"github.com/dmitrijs2005/pilotlog/internal/server/models"
	"github.com/dmitrijs2005/pilotlog/internal/server/repositories/records"
	"github.com/dmitrijs2005/pilotlog/internal/server/repositories/repomanager"
)

// -------- test fakes --------

type fakeRecordsRepo struct {
	rows      map[string]*models.Record
	findErr   error
	updateErr error
	inserts   int
	updates   int
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{rows: map[string]*models.Record{}}
}

func (f *fakeRecordsRepo) FindByMongoID(ctx context.Context, collection, mongoID string) (*models.Record, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if r, ok := f.rows[mongoID]; ok && r.Collection == collection {
		c := *r
		return &c, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRecordsRepo) FindByClientID(ctx context.Context, collection, clientID string) (*models.Record, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, r := range f.rows {
		if r.Collection == collection && r.ClientID == clientID {
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRecordsRepo) Insert(ctx context.Context, r *models.Record) error {
	f.inserts++
	c := *r
	f.rows[r.MongoID] = &c
	return nil
}

func (f *fakeRecordsRepo) Update(ctx context.Context, r *models.Record) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	c := *r
	f.rows[r.MongoID] = &c
	return nil
}

func (f *fakeRecordsRepo) SelectUpdated(ctx context.Context, collection string, since int64) ([]*models.Record, error) {
	var out []*models.Record
	for _, r := range f.rows {
		if r.Collection == collection && r.ModifiedAt > since {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt < out[j].ModifiedAt })
	return out, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	r *fakeRecordsRepo
}

func (m *fakeRepoManager) Records(db dbx.DBTX) records.Repository { return m.r }

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newService(t *testing.T, db *sql.DB, repo *fakeRecordsRepo) *SyncService {
	t.Helper()
	cfg := &config.Config{IdempotencyCacheSize: 16, IdempotencyTTL: time.Minute}
	s := NewSyncService(db, &fakeRepoManager{r: repo}, cfg, nil)

	now := time.UnixMilli(1_000)
	s.clock = func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
	return s
}

func entry(id, typ, collection string, data string, ts int64) *models.SyncEntry {
	return &models.SyncEntry{ID: id, Type: typ, Collection: collection, Data: json.RawMessage(data), Timestamp: ts}
}

// -------- tests --------

func TestApply_CreateInsertsAndAssignsID(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	repo := newFakeRecordsRepo()
	s := newService(t, db, repo)

	ack, err := s.Apply(context.Background(),
		entry("e1", "create", "flights", `{"id":"c1","createdAt":100,"date":"2026-01-02"}`, 100))
	require.NoError(t, err)
	assert.Equal(t, models.Ack{MongoID: "m1"}, ack)

	rec := repo.rows["m1"]
	require.NotNil(t, rec)
	assert.Equal(t, "c1", rec.ClientID)
	assert.Equal(t, int64(100), rec.CreatedAt)
	assert.Equal(t, int64(1_001), rec.ModifiedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_ReplayUsesCache(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	repo := newFakeRecordsRepo()
	s := newService(t, db, repo)

	e := entry("e1", "create", "aircraft", `{"id":"c1","createdAt":100}`, 100)
	first, err := s.Apply(context.Background(), e)
	require.NoError(t, err)

	second, err := s.Apply(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.inserts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_ReplayAfterCacheLossMatchesClientID(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	repo := newFakeRecordsRepo()
	s := newService(t, db, repo)

	e := entry("e1", "create", "aircraft", `{"id":"c1","createdAt":100}`, 100)
	_, err := s.Apply(context.Background(), e)
	require.NoError(t, err)
	s.applied.Purge()

	ack, err := s.Apply(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "m1", ack.MongoID)
	assert.Equal(t, 1, repo.inserts)
	assert.Zero(t, repo.updates)
}

func TestApply_UpdateLastWriterWins(t *testing.T) {
	tests := []struct {
		name      string
		updatedAt int64
		wantData  string
	}{
		{name: "newer overwrites", updatedAt: 300, wantData: `{"id":"c1","mongoId":"m1","createdAt":100,"updatedAt":300,"remarks":"new"}`},
		{name: "tie keeps stored", updatedAt: 200, wantData: `{"id":"c1","createdAt":100,"updatedAt":200}`},
		{name: "older keeps stored", updatedAt: 150, wantData: `{"id":"c1","createdAt":100,"updatedAt":200}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			mock.ExpectBegin()
			mock.ExpectCommit()
			repo := newFakeRecordsRepo()
			repo.rows["m1"] = &models.Record{
				MongoID: "m1", Collection: "flights", ClientID: "c1",
				Data:      json.RawMessage(`{"id":"c1","createdAt":100,"updatedAt":200}`),
				CreatedAt: 100, UpdatedAt: 200, ModifiedAt: 5,
			}
			s := newService(t, db, repo)

			data := fmt.Sprintf(`{"id":"c1","mongoId":"m1","createdAt":100,"updatedAt":%d,"remarks":"new"}`, tt.updatedAt)
			ack, err := s.Apply(context.Background(), entry("e2", "update", "flights", data, tt.updatedAt))
			require.NoError(t, err)
			assert.Equal(t, "m1", ack.MongoID)
			assert.JSONEq(t, tt.wantData, string(repo.rows["m1"].Data))
		})
	}
}

func TestApply_UpdateRevivesTombstoneWhenNewer(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	repo := newFakeRecordsRepo()
	repo.rows["m1"] = &models.Record{MongoID: "m1", Collection: "airports", ClientID: "c1", UpdatedAt: 200, Deleted: true}
	s := newService(t, db, repo)

	_, err := s.Apply(context.Background(),
		entry("e2", "update", "airports", `{"id":"c1","createdAt":100,"updatedAt":250}`, 250))
	require.NoError(t, err)
	assert.False(t, repo.rows["m1"].Deleted)
}

func TestApply_Delete(t *testing.T) {
	tests := []struct {
		name        string
		ts          int64
		stored      bool
		wantOutcome bool
		wantMongoID string
	}{
		{name: "newer delete", ts: 300, stored: true, wantOutcome: true, wantMongoID: "m1"},
		{name: "same instant delete", ts: 200, stored: true, wantOutcome: true, wantMongoID: "m1"},
		{name: "older delete ignored", ts: 100, stored: true, wantOutcome: false, wantMongoID: "m1"},
		{name: "unknown record", ts: 300, stored: false, wantOutcome: false, wantMongoID: "m9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			mock.ExpectBegin()
			mock.ExpectCommit()
			repo := newFakeRecordsRepo()
			if tt.stored {
				repo.rows["m1"] = &models.Record{MongoID: "m1", Collection: "personnel", ClientID: "c1", CreatedAt: 100, UpdatedAt: 200}
			}
			s := newService(t, db, repo)

			mongoID := "m1"
			if !tt.stored {
				mongoID = "m9"
			}
			data := fmt.Sprintf(`{"id":"c1","mongoId":%q}`, mongoID)
			ack, err := s.Apply(context.Background(), entry("e3", "delete", "personnel", data, tt.ts))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMongoID, ack.MongoID)

			if tt.stored {
				assert.Equal(t, tt.wantOutcome, repo.rows["m1"].Deleted)
				if tt.wantOutcome {
					assert.Equal(t, tt.ts, repo.rows["m1"].UpdatedAt)
				}
			} else {
				assert.Empty(t, repo.rows)
			}
		})
	}
}

func TestApply_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newService(t, db, newFakeRecordsRepo())

	tests := []struct {
		name string
		e    *models.SyncEntry
	}{
		{name: "missing id", e: entry("", "create", "flights", `{"id":"c1"}`, 1)},
		{name: "bad type", e: entry("e1", "upsert", "flights", `{"id":"c1"}`, 1)},
		{name: "bad collection", e: entry("e1", "create", "gliders", `{"id":"c1"}`, 1)},
		{name: "no data", e: &models.SyncEntry{ID: "e1", Type: "create", Collection: "flights"}},
		{name: "data not an object", e: entry("e1", "create", "flights", `[1]`, 1)},
		{name: "data without id", e: entry("e1", "create", "flights", `{"createdAt":1}`, 1)},
		{name: "negative timestamp", e: entry("e1", "create", "flights", `{"id":"c1"}`, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Apply(context.Background(), tt.e)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestApply_StorageErrorRollsBackAndIsNotCached(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	repo := newFakeRecordsRepo()
	repo.findErr = errors.New("db down")
	s := newService(t, db, repo)

	e := entry("e1", "create", "flights", `{"id":"c1","createdAt":1}`, 1)
	_, err := s.Apply(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	_, ok := s.applied.Get("e1")
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPull(t *testing.T) {
	db, _ := newSQLMockDB(t)
	repo := newFakeRecordsRepo()
	repo.rows["m1"] = &models.Record{MongoID: "m1", Collection: "flights", ClientID: "c1", Data: json.RawMessage(`{}`), ModifiedAt: 10}
	repo.rows["m2"] = &models.Record{MongoID: "m2", Collection: "flights", ClientID: "c2", Data: json.RawMessage(`{}`), ModifiedAt: 20, Deleted: true}
	repo.rows["m3"] = &models.Record{MongoID: "m3", Collection: "aircraft", ClientID: "c3", ModifiedAt: 30}
	s := newService(t, db, repo)

	got, err := s.Pull(context.Background(), "flights", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"id":"c2","mongoId":"m2","createdAt":0,"updatedAt":0,"deleted":true}`, string(got[0]))

	got, err = s.Pull(context.Background(), "airports", 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPull_Errors(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newService(t, db, newFakeRecordsRepo())

	_, err := s.Pull(context.Background(), "gliders", 0)
	assert.ErrorIs(t, err, common.ErrUnknownCollection)

	_, err = s.Pull(context.Background(), "flights", -1)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
