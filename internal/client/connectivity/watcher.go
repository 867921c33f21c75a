// Package connectivity turns periodic health probes of the remote store into
// online/offline signals.
package connectivity

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pilotlog/internal/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher probes the remote store every Interval and calls OnChange whenever
// reachability flips. The first probe always reports.
type Watcher struct {
	Pinger   Pinger
	Interval time.Duration
	Timeout  time.Duration
	OnChange func(ctx context.Context, online bool)
	Log      logging.Logger

	known  bool
	online bool
}

// Run probes immediately and then on every tick until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one probe and reports the result.
func (w *Watcher) Check(ctx context.Context) bool {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	err := w.Pinger.Ping(pctx)
	cancel()

	online := err == nil
	if w.known && online == w.online {
		return online
	}
	w.known = true
	w.online = online

	if w.Log != nil {
		if online {
			w.Log.Info(ctx, "remote store reachable")
		} else {
			w.Log.Warn(ctx, "remote store unreachable", "error", err)
		}
	}
	if w.OnChange != nil {
		w.OnChange(ctx, online)
	}
	return online
}
