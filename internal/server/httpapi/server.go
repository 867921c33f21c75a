// Package httpapi exposes the sync service over HTTP+JSON:
//
//	POST /api/sync                    apply one outbox entry, returns {mongoId}
//	GET  /api/sync/{collection}?since  records changed after since, {records: [...]}
//	GET  /healthz                     liveness and database reachability
//	GET  /metrics                     Prometheus metrics
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/pilotlog/internal/logging"
	"github.com/dmitrijs2005/pilotlog/internal/metrics"
	"github.com/dmitrijs2005/pilotlog/internal/server/models"
)

// SyncService is the part of services.SyncService the handlers use.
type SyncService interface {
	Apply(ctx context.Context, e *models.SyncEntry) (models.Ack, error)
	Pull(ctx context.Context, collection string, since int64) ([]json.RawMessage, error)
	Ping(ctx context.Context) error
}

// maxBodyBytes bounds a single pushed entry.
const maxBodyBytes = 1 << 20

type HTTPServer struct {
	address         string
	sync            SyncService
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func NewHTTPServer(a string, l logging.Logger, s SyncService, shutdownTimeout time.Duration) *HTTPServer {
	return &HTTPServer{
		address:         a,
		logger:          l.With("module", "http_server"),
		sync:            s,
		shutdownTimeout: shutdownTimeout,
	}
}

// Router builds the chi router with metrics and request logging.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(metrics.Middleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/sync", s.handlePush)
	r.Get("/api/sync/{collection}", s.handlePull)
	return r
}

// Run serves until ctx is done, then drains in-flight requests for up to the
// shutdown timeout.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *HTTPServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
