package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/pilotlog/internal/client/backup"
	"github.com/dmitrijs2005/pilotlog/internal/client/config"
	"github.com/dmitrijs2005/pilotlog/internal/client/connectivity"
	"github.com/dmitrijs2005/pilotlog/internal/client/remote"
	"github.com/dmitrijs2005/pilotlog/internal/client/store"
	"github.com/dmitrijs2005/pilotlog/internal/client/syncer"
	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/filex"
	"github.com/dmitrijs2005/pilotlog/internal/logging"
)

// App owns the client components built from one Config.
type App struct {
	config *config.Config
	log    logging.Logger

	store  *store.Store
	remote *remote.HTTPClient
	sync   *syncer.Orchestrator

	closers []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	for _, p := range []string{c.DatabasePath, c.LogFile} {
		if err := filex.EnsureParentDir(p); err != nil {
			return nil, err
		}
	}
	l, logCloser := logging.NewClientLogger(c.LogFile, level)

	st, err := store.Open(ctx, c.DatabasePath, store.WithLogger(l))
	if err != nil {
		l.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		logCloser.Close()
		return nil, err
	}

	rc, err := remote.NewHTTPClient(c.ServerURL, &http.Client{})
	if err != nil {
		st.Close()
		logCloser.Close()
		return nil, err
	}

	orch := syncer.New(st, rc, syncer.Options{
		Logger:       l.With("component", "syncer"),
		PushTimeout:  c.PushEntryTimeout,
		CycleTimeout: c.SyncCycleTimeout,
	})
	orch.OnStatusChange(func(s syncer.State) {
		l.Info(context.Background(), "switched mode", "state", s)
	})

	return &App{
		config:  c,
		log:     l,
		store:   st,
		remote:  rc,
		sync:    orch,
		closers: []io.Closer{st, logCloser},
	}, nil
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (a *App) Store() *store.Store { return a.store }

// SyncOnce probes the server and, when reachable, runs one full cycle.
func (a *App) SyncOnce(ctx context.Context) (syncer.Result, error) {
	pctx, cancel := context.WithTimeout(ctx, a.config.OnlineCheckInterval)
	err := a.remote.Ping(pctx)
	cancel()
	if err != nil {
		return syncer.Result{}, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return a.sync.SetOnline(ctx, true)
}

// Report is the combined output of the status command.
type Report struct {
	Status      syncer.Status                    `json:"status"`
	Collections map[string]store.CollectionStats `json:"collections"`
}

func (a *App) Report(ctx context.Context) (*Report, error) {
	st, err := a.sync.Status(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	r := &Report{Status: st, Collections: make(map[string]store.CollectionStats, len(stats))}
	for c, s := range stats {
		r.Collections[string(c)] = s
	}
	return r, nil
}

// Backup uploads a snapshot of the local logbook to the configured bucket.
func (a *App) Backup(ctx context.Context) (string, error) {
	if a.config.S3Bucket == "" {
		return "", errors.New("s3 bucket is not configured")
	}
	client, err := backup.NewS3Client(ctx, backup.S3Config{
		Endpoint:  a.config.S3Endpoint,
		Region:    a.config.S3Region,
		AccessKey: a.config.S3AccessKey,
		SecretKey: a.config.S3SecretKey,
	})
	if err != nil {
		return "", err
	}
	return backup.NewExporter(a.store, client, a.config.S3Bucket, a.log).Run(ctx)
}

// RunAgent watches connectivity and syncs periodically until ctx is done.
func (a *App) RunAgent(ctx context.Context) error {
	var srv *http.Server
	if a.config.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              a.config.MetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error(ctx, "metrics server failed", "addr", srv.Addr, "error", err)
			}
		}()
	}

	var wg sync.WaitGroup
	w := &connectivity.Watcher{
		Pinger:   a.remote,
		Interval: a.config.OnlineCheckInterval,
		Log:      a.log,
		OnChange: a.onConnectivity(&wg),
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.sync.RunPeriodic(ctx, a.config.SyncInterval)
	}()

	a.log.Info(ctx, "agent started", "server", a.config.ServerURL, "db", a.config.DatabasePath)
	<-ctx.Done()
	wg.Wait()

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}
	a.log.Info(context.Background(), "agent stopped")
	return nil
}

// onConnectivity applies each probe result at once. The sync a reconnect
// triggers runs on its own goroutine, tracked by wg, so the watcher keeps
// probing and can report a loss while the cycle is still running.
func (a *App) onConnectivity(wg *sync.WaitGroup) func(ctx context.Context, online bool) {
	return func(ctx context.Context, online bool) {
		if !a.sync.MarkOnline(online) {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.sync.FullSync(ctx); err != nil {
				a.log.Error(ctx, "sync after reconnect failed", "error", err)
			}
		}()
	}
}
