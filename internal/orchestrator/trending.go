package orchestrator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
)

type TrendingSource interface {
	ListTrending(ctx context.Context) ([]models.TrendingEntry, error)
}

// TrendingState is a snapshot of the trending orchestrator. Entries keep
// upstream order; models.Rank gives the displayed rank.
type TrendingState struct {
	Status     Status
	Entries    []models.TrendingEntry
	Err        string
	Generation uint64
}

func (s TrendingState) IsLoading() bool {
	return s.Status == StatusLoading
}

// Trending fetches the trending list once on Start and again on each Refresh.
type Trending struct {
	source TrendingSource
	log    zerolog.Logger

	mu         sync.Mutex
	state      TrendingState
	generation uint64
	started    bool
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc

	notify notifier[TrendingState]
	wg     sync.WaitGroup
}

func NewTrending(source TrendingSource) *Trending {
	return &Trending{
		source: source,
		log:    logging.Component("trending"),
	}
}

func (t *Trending) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.startCycleLocked()
}

// Refresh re-runs the fetch. It is the only way to recover from a failure.
func (t *Trending) Refresh() {
	t.mu.Lock()
	if !t.started || t.closed {
		t.mu.Unlock()
		return
	}
	t.startCycleLocked()
}

func (t *Trending) State() TrendingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Trending) Subscribe(fn func(TrendingState)) func() {
	return t.notify.subscribe(fn)
}

func (t *Trending) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Trending) startCycleLocked() {
	t.generation++
	gen := t.generation
	t.state.Status = StatusLoading
	t.state.Err = ""
	t.state.Generation = gen

	t.wg.Add(1)
	go t.runCycle(t.ctx, gen)

	t.notify.publish(&t.mu, t.snapshotLocked())
}

func (t *Trending) runCycle(ctx context.Context, gen uint64) {
	defer t.wg.Done()

	entries, err := t.source.ListTrending(ctx)

	t.mu.Lock()
	if t.closed || gen != t.generation {
		t.mu.Unlock()
		t.log.Debug().Uint64("generation", gen).Msg("[TRENDING] discarding stale cycle")
		return
	}
	if err != nil {
		t.state.Status = StatusFailed
		t.state.Err = trendingMessage(err)
		t.state.Entries = []models.TrendingEntry{}
		metrics.FetchCyclesTotal.WithLabelValues("trending", "failed").Inc()
		t.log.Warn().Err(err).Msg("[TRENDING] fetch failed")
	} else {
		t.state.Status = StatusSuccess
		t.state.Entries = make([]models.TrendingEntry, len(entries))
		copy(t.state.Entries, entries)
		metrics.FetchCyclesTotal.WithLabelValues("trending", "success").Inc()
	}
	t.notify.publish(&t.mu, t.snapshotLocked())
}

func (t *Trending) snapshotLocked() TrendingState {
	snap := t.state
	if t.state.Entries != nil {
		snap.Entries = append(make([]models.TrendingEntry, 0, len(t.state.Entries)), t.state.Entries...)
	}
	return snap
}
