// Package recommend implements the content-based recommender served at
// /api/recommend and the client the search orchestrator uses to call it.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/storage"
)

const (
	DefaultTopN        = 5
	DefaultMaxFeatures = 5000

	detailsCacheSize = 1000
)

var ErrMovieNotFound = errors.New("movie not found in dataset")

// Title is one dataset row. Tags is the free text the similarity is computed over.
type Title struct {
	MovieID int    `json:"movie_id"`
	Title   string `json:"title"`
	Tags    string `json:"tags"`
}

// DetailsFetcher resolves a dataset movie id to catalog details.
type DetailsFetcher interface {
	GetMovie(ctx context.Context, id int) (*models.Movie, error)
}

type EngineConfig struct {
	TopN        int
	MaxFeatures int
}

type Engine struct {
	titles  []Title
	index   map[string]int
	vectors []vector
	topN    int

	details      DetailsFetcher
	detailsCache *ristretto.Cache[int, models.Movie]
}

// LoadDataset reads a JSON array of titles from the dataset storage.
func LoadDataset(store storage.Storage, name string) ([]Title, error) {
	f, err := store.OpenFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("opening dataset: %w (available: %s)", err, availableDatasets(store, path.Ext(name)))
		}
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	var titles []Title
	if err := json.NewDecoder(f).Decode(&titles); err != nil {
		return nil, fmt.Errorf("decoding dataset %s: %w", name, err)
	}
	return titles, nil
}

func availableDatasets(store storage.Storage, ext string) string {
	files, err := store.ListFiles(ext)
	if err != nil || len(files) == 0 {
		return "none"
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

func NewEngine(titles []Title, details DetailsFetcher, cfg EngineConfig) (*Engine, error) {
	if len(titles) == 0 {
		return nil, errors.New("dataset is empty")
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}

	cache, err := ristretto.NewCache(&ristretto.Config[int, models.Movie]{
		NumCounters:        detailsCacheSize * 10,
		MaxCost:            detailsCacheSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating details cache: %w", err)
	}

	docs := make([]string, len(titles))
	index := make(map[string]int, len(titles))
	for i, t := range titles {
		docs[i] = t.Tags
		// first occurrence wins for duplicate titles
		if _, ok := index[t.Title]; !ok {
			index[t.Title] = i
		}
	}
	_, vectors := fitTransform(docs, cfg.MaxFeatures)

	logging.Info().
		Int("titles", len(titles)).
		Int("max_features", cfg.MaxFeatures).
		Msg("[RECOMMEND] similarity index built")

	return &Engine{
		titles:       titles,
		index:        index,
		vectors:      vectors,
		topN:         cfg.TopN,
		details:      details,
		detailsCache: cache,
	}, nil
}

func (e *Engine) Close() {
	e.detailsCache.Close()
}

// Similar ranks the dataset against title by cosine similarity, most similar
// first, and returns the top N excluding the title itself.
func (e *Engine) Similar(title string) ([]Title, error) {
	idx, ok := e.index[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMovieNotFound, title)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(e.titles)-1)
	for i := range e.titles {
		if i == idx {
			continue
		}
		scores = append(scores, scored{idx: i, score: cosine(e.vectors[idx], e.vectors[i])})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	n := min(e.topN, len(scores))
	out := make([]Title, n)
	for i := 0; i < n; i++ {
		out[i] = e.titles[scores[i].idx]
	}
	return out, nil
}

// Recommend returns catalog details for the titles most similar to title.
// Details are fetched in parallel; the result keeps similarity order.
func (e *Engine) Recommend(ctx context.Context, title string) ([]models.Movie, error) {
	similar, err := e.Similar(title)
	if err != nil {
		return nil, err
	}

	movies := make([]models.Movie, len(similar))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range similar {
		g.Go(func() error {
			m, err := e.movieDetails(gctx, t.MovieID)
			if err != nil {
				return fmt.Errorf("fetching details for %d: %w", t.MovieID, err)
			}
			movies[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return movies, nil
}

func (e *Engine) movieDetails(ctx context.Context, id int) (models.Movie, error) {
	if m, ok := e.detailsCache.Get(id); ok {
		metrics.CacheHitsTotal.WithLabelValues("movie_details").Inc()
		return m, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("movie_details").Inc()

	full, err := e.details.GetMovie(ctx, id)
	if err != nil {
		return models.Movie{}, err
	}

	m := models.Movie{
		ID:               id,
		Title:            full.Title,
		PosterPath:       full.PosterPath,
		VoteAverage:      math.RoundToEven(full.VoteAverage),
		ReleaseDate:      releaseYear(full.ReleaseDate),
		OriginalLanguage: full.OriginalLanguage,
	}
	e.detailsCache.Set(id, m, 1)
	return m, nil
}

func releaseYear(date string) string {
	year, _, _ := strings.Cut(date, "-")
	return year
}
