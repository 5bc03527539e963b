// Package gateway is the client-side boundary to the remote catalog, the
// trending-counter store and the recommendation service.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/trending"
)

const posterSize = "w500"

// MovieSearcher is the part of the TMDb client the catalog gateway needs.
type MovieSearcher interface {
	SearchMovies(ctx context.Context, query string) ([]models.Movie, error)
	GetImageURL(path string, size string) string
}

type CatalogOption func(*Catalog)

func WithTrendingLimit(n int) CatalogOption {
	return func(c *Catalog) {
		if n > 0 {
			c.limit = n
		}
	}
}

func WithCatalogBreaker(s BreakerSettings) CatalogOption {
	return func(c *Catalog) {
		c.searchBreaker = newBreaker("tmdb", s)
		c.storeBreaker = newBreaker("trending-store", s)
	}
}

// Catalog combines catalog search with the trending-counter store.
type Catalog struct {
	searcher MovieSearcher
	store    trending.Store
	limit    int

	searchBreaker *breaker
	storeBreaker  *breaker
}

func NewCatalog(searcher MovieSearcher, store trending.Store, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		searcher: searcher,
		store:    store,
		limit:    trending.DefaultLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.searchBreaker == nil {
		c.searchBreaker = newBreaker("tmdb", BreakerSettings{})
	}
	if c.storeBreaker == nil {
		c.storeBreaker = newBreaker("trending-store", BreakerSettings{})
	}
	return c
}

// Search returns catalog matches for query, or the discover listing when query is empty.
func (c *Catalog) Search(ctx context.Context, query string) ([]models.Movie, error) {
	op := "search movies"
	if query == "" {
		op = "discover movies"
	}
	movies, err := execute(c.searchBreaker, op, func() ([]models.Movie, error) {
		return c.searcher.SearchMovies(ctx, query)
	})
	if err != nil {
		return nil, asRequestError(op, err)
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	return movies, nil
}

// ReportSelection bumps the trending counter for movie. Callers log the
// error; it never fails a search.
func (c *Catalog) ReportSelection(ctx context.Context, query string, movie models.Movie) error {
	sel := trending.Selection{
		Query:     query,
		Movie:     movie,
		PosterURL: c.searcher.GetImageURL(movie.PosterPath, posterSize),
	}
	_, err := execute(c.storeBreaker, "record search", func() (struct{}, error) {
		return struct{}{}, c.store.RecordSearch(ctx, sel)
	})
	if err != nil {
		return fmt.Errorf("reporting selection %q: %w", movie.Title, err)
	}
	return nil
}

// ListTrending returns the most searched titles, rank order preserved.
func (c *Catalog) ListTrending(ctx context.Context) ([]models.TrendingEntry, error) {
	const op = "list trending"
	entries, err := execute(c.storeBreaker, op, func() ([]models.TrendingEntry, error) {
		return c.store.List(ctx, c.limit)
	})
	if err != nil {
		return nil, asRequestError(op, err)
	}
	if entries == nil {
		entries = []models.TrendingEntry{}
	}
	return entries, nil
}

// asRequestError leaves taxonomy errors alone and wraps anything else.
func asRequestError(op string, err error) error {
	var reqErr *models.RequestError
	var upstream *models.UpstreamError
	if errors.As(err, &reqErr) || errors.As(err, &upstream) {
		return err
	}
	return &models.RequestError{Op: op, Err: err}
}
