package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pilotlog/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPinger struct {
	mu      sync.Mutex
	results []error
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	return err
}

func TestCheck_ReportsOnlyTransitions(t *testing.T) {
	down := errors.New("down")
	p := &scriptedPinger{results: []error{down, down, nil, nil, down}}

	var got []bool
	w := &Watcher{
		Pinger:   p,
		OnChange: func(_ context.Context, online bool) { got = append(got, online) },
		Log:      logging.Nop(),
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		w.Check(ctx)
	}
	assert.Equal(t, []bool{false, true, false}, got)
}

func TestRun_ProbesImmediatelyAndStops(t *testing.T) {
	calls := make(chan bool, 8)
	w := &Watcher{
		Pinger:   &scriptedPinger{},
		Interval: time.Hour,
		OnChange: func(_ context.Context, online bool) { calls <- online },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case online := <-calls:
		assert.True(t, online)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial probe")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "watcher did not stop")
	}
}
