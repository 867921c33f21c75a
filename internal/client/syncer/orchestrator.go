package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/pilotlog/internal/client/conflict"
	"github.com/dmitrijs2005/pilotlog/internal/client/models"
	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/logging"
	"github.com/dmitrijs2005/pilotlog/internal/metrics"
	"github.com/dmitrijs2005/pilotlog/internal/timex"
)

type State string

const (
	StateOffline State = "offline"
	StateOnline  State = "online"
	StateSyncing State = "syncing"
)

var allStates = []string{string(StateOffline), string(StateOnline), string(StateSyncing)}

// Remote is the remote store endpoint.
type Remote interface {
	// Push delivers one outbox entry.
	Push(ctx context.Context, e models.OutboxEntry) (models.PushAck, error)
	// Pull returns the records of c changed after since.
	Pull(ctx context.Context, c models.Collection, since int64) ([]json.RawMessage, error)
}

// LocalStore is the part of store.Store the orchestrator needs.
type LocalStore interface {
	PendingEntries(ctx context.Context) ([]models.OutboxEntry, error)
	Acknowledge(ctx context.Context, e models.OutboxEntry, mongoID string) error
	MarkFailed(ctx context.Context, e models.OutboxEntry) error
	MongoIDOf(ctx context.Context, c models.Collection, id string) (string, error)
	UpsertFromServer(ctx context.Context, c models.Collection, raw json.RawMessage) (conflict.Outcome, error)
	LastSyncAt(ctx context.Context) (int64, error)
	SetLastSyncAt(ctx context.Context, ts int64) error
	OutboxSize(ctx context.Context) (int, error)
}

// Result summarizes one cycle or phase.
type Result struct {
	Pushed int `json:"pushed"`
	Pulled int `json:"pulled"`
	// Failed counts failed pushes and failed collection pulls.
	Failed int `json:"failed"`
	// Skipped counts malformed pulled records.
	Skipped int `json:"skipped"`
}

func (r Result) add(o Result) Result {
	return Result{
		Pushed:  r.Pushed + o.Pushed,
		Pulled:  r.Pulled + o.Pulled,
		Failed:  r.Failed + o.Failed,
		Skipped: r.Skipped + o.Skipped,
	}
}

// Status is a point-in-time view for status displays.
type Status struct {
	State      State  `json:"state"`
	LastSyncAt int64  `json:"lastSyncAt"`
	Outbox     int    `json:"outbox"`
	LastResult Result `json:"lastResult"`
}

type Options struct {
	Logger       logging.Logger
	Clock        timex.Clock
	PushTimeout  time.Duration
	CycleTimeout time.Duration
	// Online is the connectivity known at construction.
	Online bool
}

type Orchestrator struct {
	store  LocalStore
	remote Remote
	log    logging.Logger
	clock  timex.Clock

	pushTimeout  time.Duration
	cycleTimeout time.Duration

	online  atomic.Bool
	syncing atomic.Bool

	mu         sync.Mutex
	state      State
	lastResult Result
	statusSubs []func(State)
	dataSubs   []func(Result)
}

func New(store LocalStore, remote Remote, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		remote:       remote,
		log:          opts.Logger,
		clock:        opts.Clock,
		pushTimeout:  opts.PushTimeout,
		cycleTimeout: opts.CycleTimeout,
		state:        StateOffline,
	}
	if o.log == nil {
		o.log = logging.Nop()
	}
	if opts.Online {
		o.online.Store(true)
		o.state = StateOnline
	}
	metrics.SetState(string(o.state), allStates...)
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OnStatusChange registers fn to be called after every state transition.
func (o *Orchestrator) OnStatusChange(fn func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statusSubs = append(o.statusSubs, fn)
}

// OnDataChanged registers fn to be called after every completed cycle.
func (o *Orchestrator) OnDataChanged(fn func(Result)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dataSubs = append(o.dataSubs, fn)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	if o.state == s {
		o.mu.Unlock()
		return
	}
	prev := o.state
	o.state = s
	subs := append([]func(State){}, o.statusSubs...)
	o.mu.Unlock()

	metrics.SetState(string(s), allStates...)
	o.log.Info(context.Background(), "sync state changed", "from", string(prev), "to", string(s))
	for _, fn := range subs {
		fn(s)
	}
}

// SetOnline feeds a connectivity signal. Going from offline to online runs a
// full sync and returns its result. While a cycle runs the state stays
// syncing; the cycle settles on the connectivity it sees when it ends.
func (o *Orchestrator) SetOnline(ctx context.Context, online bool) (Result, error) {
	if !o.MarkOnline(online) {
		return Result{}, nil
	}
	return o.FullSync(ctx)
}

// MarkOnline records a connectivity signal without syncing and reports
// whether it was an offline to online transition. Callers that must not block
// run the follow-up FullSync themselves.
func (o *Orchestrator) MarkOnline(online bool) bool {
	was := o.online.Swap(online)
	if online == was {
		return false
	}
	if !o.syncing.Load() {
		if online {
			o.setState(StateOnline)
		} else {
			o.setState(StateOffline)
		}
	}
	return online
}

// FullSync runs one pull-then-push cycle. It is a no-op returning a zero
// Result when offline or when another cycle is in progress. The returned error
// is only ever a local store failure; remote failures are counted in Result.
func (o *Orchestrator) FullSync(ctx context.Context) (res Result, err error) {
	if !o.online.Load() {
		return Result{}, nil
	}
	if !o.syncing.CompareAndSwap(false, true) {
		return Result{}, nil
	}

	started := time.Now()
	o.setState(StateSyncing)
	defer func() {
		o.syncing.Store(false)
		if o.online.Load() {
			o.setState(StateOnline)
		} else {
			o.setState(StateOffline)
		}

		label := "ok"
		if err != nil {
			label = "error"
		} else if res.Failed > 0 || res.Skipped > 0 {
			label = "partial"
		}
		metrics.SyncCycles.WithLabelValues(label).Inc()
		metrics.SyncCycleDuration.Observe(time.Since(started).Seconds())
	}()

	if o.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cycleTimeout)
		defer cancel()
	}

	watermark := o.clock.Millis()

	pulled, complete, err := o.pull(ctx)
	if err != nil {
		return pulled, err
	}
	pushed, err := o.PushPendingChanges(ctx)
	res = pulled.add(pushed)
	if err != nil {
		return res, err
	}

	if complete {
		// the cycle deadline must not lose a watermark that is already earned
		if err := o.store.SetLastSyncAt(context.WithoutCancel(ctx), watermark); err != nil {
			return res, err
		}
	}

	o.mu.Lock()
	o.lastResult = res
	subs := append([]func(Result){}, o.dataSubs...)
	o.mu.Unlock()
	for _, fn := range subs {
		fn(res)
	}

	o.log.Info(ctx, "sync cycle finished",
		"pushed", res.Pushed, "pulled", res.Pulled, "failed", res.Failed, "skipped", res.Skipped,
		"watermark_advanced", complete)
	return res, nil
}

// PushPendingChanges drains the outbox oldest-first, one remote call per
// entry. A failed entry stays queued and the rest continue, except later
// entries for the same record, which wait for the next cycle so that an update
// is never delivered ahead of the create it follows.
func (o *Orchestrator) PushPendingChanges(ctx context.Context) (Result, error) {
	var res Result

	entries, err := o.store.PendingEntries(ctx)
	if err != nil {
		return res, err
	}

	type recordKey struct {
		c  models.Collection
		id string
	}
	blocked := map[recordKey]bool{}

	for i, e := range entries {
		if ctx.Err() != nil {
			o.log.Warn(ctx, "push interrupted, entries stay queued", "remaining", len(entries)-i, "error", ctx.Err())
			break
		}

		key := recordKey{e.Collection, e.RecordID()}
		if blocked[key] {
			res.Failed++
			continue
		}

		if err := o.pushOne(ctx, e); err != nil {
			res.Failed++
			blocked[key] = true
			metrics.PushFailures.WithLabelValues(string(e.Collection)).Inc()
			o.log.Warn(ctx, "push failed",
				"entry_id", e.ID, "collection", string(e.Collection), "type", string(e.Type()), "error", err)
			if merr := o.store.MarkFailed(ctx, e); merr != nil {
				o.log.Error(ctx, "mark failed", "entry_id", e.ID, "error", merr)
			}
			continue
		}
		res.Pushed++
		metrics.PushedEntries.WithLabelValues(string(e.Collection), string(e.Type())).Inc()
	}

	if n, err := o.store.OutboxSize(ctx); err == nil {
		metrics.OutboxDepth.Set(float64(n))
	}
	return res, nil
}

func (o *Orchestrator) pushOne(ctx context.Context, e models.OutboxEntry) error {
	mongoID, err := o.store.MongoIDOf(ctx, e.Collection, e.RecordID())
	if err != nil {
		return err
	}
	send, err := e.WithMongoID(mongoID)
	if err != nil {
		return err
	}

	pctx := ctx
	if o.pushTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, o.pushTimeout)
		defer cancel()
	}

	ack, err := o.remote.Push(pctx, send)
	if err != nil {
		return err
	}
	return o.store.Acknowledge(context.WithoutCancel(ctx), e, ack.MongoID)
}

// PullFromServer fetches every collection changed since the watermark and
// merges each record. It does not move the watermark.
func (o *Orchestrator) PullFromServer(ctx context.Context) (Result, error) {
	res, _, err := o.pull(ctx)
	return res, err
}

// pull reports complete when every collection request succeeded. Malformed
// records are skipped; any other merge failure aborts the pull.
func (o *Orchestrator) pull(ctx context.Context) (Result, bool, error) {
	var res Result

	since, err := o.store.LastSyncAt(ctx)
	if err != nil {
		return res, false, err
	}

	complete := true
	for _, c := range models.Collections {
		records, err := o.remote.Pull(ctx, c, since)
		if err != nil {
			res.Failed++
			complete = false
			o.log.Warn(ctx, "pull failed", "collection", string(c), "since", since, "error", err)
			continue
		}

		for i, raw := range records {
			outcome, err := o.store.UpsertFromServer(ctx, c, raw)
			if err != nil && !errors.Is(err, common.ErrMalformedRecord) {
				return res, false, fmt.Errorf("merge %s record %d: %w", c, i, err)
			}
			if err != nil {
				res.Skipped++
				metrics.SkippedRecords.WithLabelValues(string(c)).Inc()
				o.log.Warn(ctx, "pulled record skipped", "collection", string(c), "index", i, "error", err)
				continue
			}
			res.Pulled++
			metrics.PulledRecords.WithLabelValues(string(c), outcome.String()).Inc()
		}
	}
	return res, complete, nil
}

// RunPeriodic runs FullSync every interval until ctx is done.
func (o *Orchestrator) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := o.FullSync(ctx); err != nil {
				o.log.Error(ctx, "periodic sync failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Status reports the state, watermark, outbox depth and last cycle result.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	o.mu.Lock()
	st := Status{State: o.state, LastResult: o.lastResult}
	o.mu.Unlock()

	var err error
	if st.LastSyncAt, err = o.store.LastSyncAt(ctx); err != nil {
		return st, err
	}
	if st.Outbox, err = o.store.OutboxSize(ctx); err != nil {
		return st, err
	}
	return st, nil
}
