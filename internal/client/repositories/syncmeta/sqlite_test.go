package syncmeta

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE sync_meta (
  key          TEXT PRIMARY KEY,
  last_sync_at INTEGER NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet_InsertThenGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, LastSyncKey, 1700000000000))

	ts, ok, err := r.Get(ctx, LastSyncKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1700000000000), ts)
}

func TestGet_NotExists_ReturnsZeroFalse(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	ts, ok, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, ts)
}

func TestSet_UpsertOverwritesValue(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, LastSyncKey, 1))
	require.NoError(t, r.Set(ctx, LastSyncKey, 2))

	ts, _, err := r.Get(ctx, LastSyncKey)
	require.NoError(t, err)
	require.Equal(t, int64(2), ts)

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{LastSyncKey: 2}, m)
}

func TestDelete_RemovesKey_AndIsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "x", 1))
	require.NoError(t, r.Delete(ctx, "x"))
	require.NoError(t, r.Delete(ctx, "x"))

	_, ok, err := r.Get(ctx, "x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSet_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	err := r.Set(context.Background(), "k", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to set sync_meta")
}

func TestList_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	_, err := r.List(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to list sync_meta")
}
