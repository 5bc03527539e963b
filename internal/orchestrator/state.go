// Package orchestrator drives the search and trending fetch cycles and
// exposes their loading/error/result state to a presentation layer.
package orchestrator

import (
	"errors"
	"sync"

	"github.com/kdimtricp/moviescout/internal/models"
)

// Status is the request state of one orchestrator. Exactly one holds at a time.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	msgRecommendations = "Failed to fetch recommendations"
	msgUpstreamDefault = "Error fetching movies"
	msgSearchRequest   = "Failed to fetch movies"
	msgSearchOther     = "An error occurred while fetching movies"
	msgTrendingRequest = "Failed to fetch trending movies"
	msgTrendingOther   = "An error occurred while fetching trending movies"
)

func searchMessage(err error) string {
	var recErr *models.RecommendationError
	var upErr *models.UpstreamError
	var reqErr *models.RequestError
	switch {
	case errors.As(err, &recErr):
		return msgRecommendations
	case errors.As(err, &upErr):
		if upErr.Message != "" {
			return upErr.Message
		}
		return msgUpstreamDefault
	case errors.As(err, &reqErr):
		return msgSearchRequest
	default:
		return msgSearchOther
	}
}

func trendingMessage(err error) string {
	var upErr *models.UpstreamError
	var reqErr *models.RequestError
	switch {
	case errors.As(err, &upErr) && upErr.Message != "":
		return upErr.Message
	case errors.As(err, &reqErr):
		return msgTrendingRequest
	default:
		return msgTrendingOther
	}
}

// notifier fans state snapshots out to subscribers. Callbacks run
// synchronously, one at a time, in publish order; they must not call back
// into the orchestrator's mutating methods. Subscribing or unsubscribing from
// inside a callback is allowed and takes effect from the next publish.
type notifier[T any] struct {
	mu sync.Mutex // serializes delivery

	subsMu sync.Mutex
	nextID int
	subs   map[int]func(T)
	order  []int
}

func (n *notifier[T]) subscribe(fn func(T)) func() {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(T))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.order = append(n.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.subsMu.Lock()
			defer n.subsMu.Unlock()
			delete(n.subs, id)
			for i, v := range n.order {
				if v == id {
					n.order = append(n.order[:i], n.order[i+1:]...)
					break
				}
			}
		})
	}
}

// publish hands the snapshot to subscribers. The caller holds stateMu, which
// is released only once the notifier lock is taken so that subscribers see
// snapshots in mutation order.
func (n *notifier[T]) publish(stateMu *sync.Mutex, snap T) {
	n.mu.Lock()
	stateMu.Unlock()
	defer n.mu.Unlock()

	n.subsMu.Lock()
	fns := make([]func(T), 0, len(n.order))
	for _, id := range n.order {
		fns = append(fns, n.subs[id])
	}
	n.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func cloneMovies(in []models.Movie) []models.Movie {
	if in == nil {
		return nil
	}
	out := make([]models.Movie, len(in))
	copy(out, in)
	return out
}
