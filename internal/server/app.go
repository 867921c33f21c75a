// Package server wires the sync server together: configuration, the
// Postgres record store, the sync service and the HTTP endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/pilotlog/internal/logging"
	"github.com/dmitrijs2005/pilotlog/internal/server/config"
	"github.com/dmitrijs2005/pilotlog/internal/server/httpapi"
	"github.com/dmitrijs2005/pilotlog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pilotlog/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	service *services.SyncService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := logging.NewJSON(os.Stdout, level)

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := repomanager.Open(ctx, rm, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	svc := services.NewSyncService(db, rm, c, logger)
	return &App{config: c, logger: logger, db: db, service: svc}, nil
}

// Run serves until ctx is done and then closes the database.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)
	s := httpapi.NewHTTPServer(app.config.EndpointAddr, app.logger, app.service, app.config.ShutdownTimeout)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}
	app.logger.Info(ctx, "server stopped")
	return nil
}
