package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
)

const (
	DefaultDebounce      = time.Second
	DefaultReportTimeout = 5 * time.Second
)

// CatalogGateway searches the catalog and records which movie a query landed on.
type CatalogGateway interface {
	Search(ctx context.Context, query string) ([]models.Movie, error)
	ReportSelection(ctx context.Context, query string, movie models.Movie) error
}

type RecommendationGateway interface {
	Recommend(ctx context.Context, title string) ([]models.Movie, error)
}

// SearchState is a snapshot of the search orchestrator.
//
// Results is nil before the first successful fetch and an empty slice when a
// fetch found nothing. Recommendations is non-empty only when DebouncedQuery
// is non-empty and Results is non-empty.
type SearchState struct {
	Query           string
	DebouncedQuery  string
	Status          Status
	Results         []models.Movie
	Recommendations []models.Movie
	Err             string
	Generation      uint64
}

func (s SearchState) IsLoading() bool {
	return s.Status == StatusLoading
}

type SearchOption func(*Search)

// WithDebounce sets the quiet period input must hold before it is committed.
func WithDebounce(d time.Duration) SearchOption {
	return func(s *Search) {
		if d > 0 {
			s.quiet = d
		}
	}
}

// WithReportTimeout bounds the fire-and-forget trending report.
func WithReportTimeout(d time.Duration) SearchOption {
	return func(s *Search) {
		if d > 0 {
			s.reportTimeout = d
		}
	}
}

// Search owns the query, the debounce timer and the two-stage fetch cycle
// (catalog search, then recommendations for the top match). Only the most
// recently started cycle may change state; older completions are dropped.
type Search struct {
	catalog       CatalogGateway
	recommender   RecommendationGateway
	quiet         time.Duration
	reportTimeout time.Duration
	debounced     func(func())
	log           zerolog.Logger

	mu         sync.Mutex
	state      SearchState
	generation uint64
	started    bool
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc

	notify notifier[SearchState]
	wg     sync.WaitGroup
}

func NewSearch(catalog CatalogGateway, recommender RecommendationGateway, opts ...SearchOption) *Search {
	s := &Search{
		catalog:       catalog,
		recommender:   recommender,
		quiet:         DefaultDebounce,
		reportTimeout: DefaultReportTimeout,
		log:           logging.Component("search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debounced = debounce.New(s.quiet)
	return s
}

// Start binds the cycle context and runs the first cycle for the current
// debounced query (empty unless input was committed earlier).
func (s *Search) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startCycleLocked()
}

// SetQuery records user input and restarts the debounce timer.
func (s *Search) SetQuery(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Query = text
	s.debounced(func() { s.commit(text) })
	s.notify.publish(&s.mu, s.snapshotLocked())
}

// Refresh re-runs the cycle for the current debounced query.
func (s *Search) Refresh() {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.startCycleLocked()
}

func (s *Search) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Search) IsLoading() bool {
	return s.State().IsLoading()
}

// Error returns the display message of the last failed cycle, or "".
func (s *Search) Error() string {
	return s.State().Err
}

// Subscribe registers fn for every state change. The returned func unsubscribes.
func (s *Search) Subscribe(fn func(SearchState)) func() {
	return s.notify.subscribe(fn)
}

// Close drops pending input, cancels the cycle context and waits for
// in-flight cycles and reports to return.
func (s *Search) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.debounced(func() {})
	s.wg.Wait()
}

func (s *Search) commit(text string) {
	s.mu.Lock()
	if s.closed || text == s.state.DebouncedQuery {
		s.mu.Unlock()
		return
	}
	s.state.DebouncedQuery = text
	if !s.started {
		s.notify.publish(&s.mu, s.snapshotLocked())
		return
	}
	s.startCycleLocked()
}

// startCycleLocked must be called with s.mu held; it releases it.
func (s *Search) startCycleLocked() {
	s.generation++
	gen := s.generation
	query := s.state.DebouncedQuery

	s.state.Status = StatusLoading
	s.state.Err = ""
	s.state.Generation = gen

	s.log.Debug().Uint64("generation", gen).Str("query", query).Msg("[SEARCH] cycle started")

	s.wg.Add(1)
	go s.runCycle(s.ctx, gen, query)

	s.notify.publish(&s.mu, s.snapshotLocked())
}

func (s *Search) runCycle(ctx context.Context, gen uint64, query string) {
	defer s.wg.Done()

	movies, err := s.catalog.Search(ctx, query)
	if err != nil {
		s.fail(gen, err)
		return
	}
	if s.isStale(gen) {
		s.log.Debug().Uint64("generation", gen).Msg("[SEARCH] discarding superseded search result")
		return
	}

	recs := []models.Movie{}
	if query != "" && len(movies) > 0 {
		top := movies[0]
		s.report(query, top)

		recs, err = s.recommender.Recommend(ctx, top.Title)
		if err != nil {
			s.fail(gen, &models.RecommendationError{Title: top.Title, Err: err})
			return
		}
	}

	s.succeed(gen, movies, recs)
}

func (s *Search) isStale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || gen != s.generation
}

func (s *Search) succeed(gen uint64, movies, recs []models.Movie) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		s.log.Debug().Uint64("generation", gen).Msg("[SEARCH] discarding stale cycle")
		return
	}
	if recs == nil {
		recs = []models.Movie{}
	}
	s.state.Status = StatusSuccess
	s.state.Err = ""
	s.state.Results = cloneMovies(movies)
	s.state.Recommendations = cloneMovies(recs)
	metrics.FetchCyclesTotal.WithLabelValues("search", "success").Inc()

	s.notify.publish(&s.mu, s.snapshotLocked())
}

func (s *Search) fail(gen uint64, err error) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		s.log.Debug().Err(err).Uint64("generation", gen).Msg("[SEARCH] discarding stale failure")
		return
	}
	s.state.Status = StatusFailed
	s.state.Err = searchMessage(err)
	s.state.Results = []models.Movie{}
	s.state.Recommendations = []models.Movie{}
	metrics.FetchCyclesTotal.WithLabelValues("search", "failed").Inc()
	s.log.Warn().Err(err).Uint64("generation", gen).Msg("[SEARCH] cycle failed")

	s.notify.publish(&s.mu, s.snapshotLocked())
}

// report tells the trending store which movie the query resolved to. It runs
// detached from the cycle and its failure is only logged.
func (s *Search) report(query string, movie models.Movie) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.reportTimeout)
		defer cancel()

		if err := s.catalog.ReportSelection(ctx, query, movie); err != nil {
			metrics.TrendingReportsTotal.WithLabelValues("failed").Inc()
			s.log.Warn().Err(err).Str("query", query).Msg("[SEARCH] failed to report search")
			return
		}
		metrics.TrendingReportsTotal.WithLabelValues("ok").Inc()
	}()
}

func (s *Search) snapshotLocked() SearchState {
	snap := s.state
	snap.Results = cloneMovies(s.state.Results)
	snap.Recommendations = cloneMovies(s.state.Recommendations)
	return snap
}
