package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var recordColumns = []string{"mongo_id", "collection", "client_id", "data", "created_at", "updated_at", "modified_at", "deleted"}

func TestFindByMongoID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT mongo_id, .* FROM records WHERE collection = \$1 AND mongo_id = \$2$`
	rows := sqlmock.NewRows(recordColumns).
		AddRow("m1", "flights", "c1", []byte(`{"date":"2026-01-02"}`), int64(1), int64(2), int64(3), false)
	mock.ExpectQuery(q).WithArgs("flights", "m1").WillReturnRows(rows)

	got, err := repo.FindByMongoID(context.Background(), "flights", "m1")
	require.NoError(t, err)
	assert.Equal(t, &models.Record{
		MongoID: "m1", Collection: "flights", ClientID: "c1",
		Data:      json.RawMessage(`{"date":"2026-01-02"}`),
		CreatedAt: 1, UpdatedAt: 2, ModifiedAt: 3,
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByClientID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `SELECT .* FROM records WHERE collection = \$1 AND client_id = \$2`
	mock.ExpectQuery(q).WithArgs("aircraft", "c1").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByClientID(context.Background(), "aircraft", "c1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByClientID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM records`).WillReturnError(errors.New("db down"))

	_, err := repo.FindByClientID(context.Background(), "aircraft", "c1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestInsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `INSERT INTO records \(mongo_id, collection, client_id, data, created_at, updated_at, modified_at, deleted\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`
	mock.ExpectExec(q).
		WithArgs("m1", "airports", "c1", `{"icao":"EGLL"}`, int64(1), int64(0), int64(9), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.Record{
		MongoID: "m1", Collection: "airports", ClientID: "c1",
		Data: json.RawMessage(`{"icao":"EGLL"}`), CreatedAt: 1, ModifiedAt: 9,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO records`).WillReturnError(errors.New("duplicate key"))

	err := repo.Insert(context.Background(), &models.Record{MongoID: "m1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		result  sql.Result
		wantErr error
		errText string
	}{
		{name: "one row", result: sqlmock.NewResult(0, 1)},
		{name: "missing", result: sqlmock.NewResult(0, 0), wantErr: common.ErrorNotFound},
		{name: "rows affected error", result: sqlmock.NewErrorResult(errors.New("rows-err")), errText: "rows affected error"},
		{name: "many rows", result: sqlmock.NewResult(0, 2), errText: "unexpected rows affected: 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			q := `UPDATE records SET data = \$2, created_at = \$3, updated_at = \$4, modified_at = \$5, deleted = \$6 WHERE mongo_id = \$1`
			mock.ExpectExec(q).
				WithArgs("m1", `{}`, int64(1), int64(5), int64(10), true).
				WillReturnResult(tt.result)

			err := repo.Update(context.Background(), &models.Record{
				MongoID: "m1", Data: json.RawMessage(`{}`), CreatedAt: 1, UpdatedAt: 5, ModifiedAt: 10, Deleted: true,
			})
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestSelectUpdated(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `SELECT .* FROM records WHERE collection = \$1 AND modified_at > \$2 ORDER BY modified_at, mongo_id`
	rows := sqlmock.NewRows(recordColumns).
		AddRow("m1", "personnel", "c1", []byte(`{"name":"A"}`), int64(1), int64(0), int64(11), false).
		AddRow("m2", "personnel", "c2", []byte(`{}`), int64(1), int64(4), int64(12), true)
	mock.ExpectQuery(q).WithArgs("personnel", int64(10)).WillReturnRows(rows)

	got, err := repo.SelectUpdated(context.Background(), "personnel", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].MongoID)
	assert.True(t, got[1].Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectUpdated_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM records`).WillReturnError(errors.New("boom"))

	_, err := repo.SelectUpdated(context.Background(), "flights", 0)
	if err == nil || !regexp.MustCompile(`failed to select records: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSelectUpdated_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(recordColumns).
		AddRow("m1", "flights", "c1", []byte(`{}`), int64(1), int64(0), int64(11), false).
		RowError(0, errors.New("row broken"))
	mock.ExpectQuery(`SELECT .* FROM records`).WillReturnRows(rows)

	_, err := repo.SelectUpdated(context.Background(), "flights", 0)
	assert.Error(t, err)
}
