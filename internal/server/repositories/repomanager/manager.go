package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pilotlog/internal/dbx"
	"github.com/dmitrijs2005/pilotlog/internal/server/repositories/records"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
}
