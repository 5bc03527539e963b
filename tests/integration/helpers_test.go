package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kdimtricp/moviescout/internal/api"
	"github.com/kdimtricp/moviescout/internal/database"
	"github.com/kdimtricp/moviescout/internal/gateway"
	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/orchestrator"
	"github.com/kdimtricp/moviescout/internal/recommend"
	"github.com/kdimtricp/moviescout/internal/search"
	"github.com/kdimtricp/moviescout/internal/storage"
	"github.com/kdimtricp/moviescout/internal/trending"
)

const testDebounce = 30 * time.Millisecond

var catalogMovies = []models.Movie{
	{ID: 1, Title: "The Matrix", PosterPath: "/matrix.jpg", VoteAverage: 8.2, ReleaseDate: "1999-03-31", OriginalLanguage: "en"},
	{ID: 2, Title: "The Matrix Reloaded", PosterPath: "/reloaded.jpg", VoteAverage: 7.0, ReleaseDate: "2003-05-15", OriginalLanguage: "en"},
	{ID: 3, Title: "Inception", PosterPath: "/inception.jpg", VoteAverage: 8.4, ReleaseDate: "2010-07-15", OriginalLanguage: "en"},
	{ID: 4, Title: "Finding Nemo", PosterPath: "/nemo.jpg", VoteAverage: 7.8, ReleaseDate: "2003-05-30", OriginalLanguage: "en"},
	{ID: 5, Title: "Shark Tale", PosterPath: "/shark.jpg", VoteAverage: 6.1, ReleaseDate: "2004-09-20", OriginalLanguage: "en"},
	{ID: 6, Title: "Unlisted Short", ReleaseDate: "2021-01-01", OriginalLanguage: "fr"},
}

// dataset has no entry for "Unlisted Short".
var dataset = []recommend.Title{
	{MovieID: 1, Title: "The Matrix", Tags: "hacker simulation reality machines kung fu"},
	{MovieID: 2, Title: "The Matrix Reloaded", Tags: "hacker simulation machines zion"},
	{MovieID: 3, Title: "Inception", Tags: "dream heist reality subconscious"},
	{MovieID: 4, Title: "Finding Nemo", Tags: "fish ocean father son"},
	{MovieID: 5, Title: "Shark Tale", Tags: "fish ocean shark"},
}

// TestStack is a fake TMDb upstream, the recommendation/trending API backed
// by sqlite, and the client-side gateways pointed at both.
type TestStack struct {
	TMDb     *httptest.Server
	API      *httptest.Server
	DB       *database.DB
	Repo     *database.TrendingRepository
	Engine   *recommend.Engine
	Catalog  *gateway.Catalog
	Recs     *gateway.Recommendations
	Searches atomic.Int32
}

func setupStack(t *testing.T) *TestStack {
	t.Helper()
	ts := &TestStack{}

	ts.TMDb = httptest.NewServer(fakeTMDb(&ts.Searches))
	t.Cleanup(ts.TMDb.Close)

	tmdb := search.NewTMDbClient(search.Config{
		APIKey:  "test-key",
		BaseURL: ts.TMDb.URL,
		Timeout: 5 * time.Second,
	})

	dir := t.TempDir()
	raw, err := json.Marshal(dataset)
	if err != nil {
		t.Fatalf("Failed to encode dataset: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "movies.json"), raw, 0o644); err != nil {
		t.Fatalf("Failed to write dataset: %v", err)
	}
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	titles, err := recommend.LoadDataset(store, "movies.json")
	if err != nil {
		t.Fatalf("Failed to load dataset: %v", err)
	}
	ts.Engine, err = recommend.NewEngine(titles, tmdb, recommend.EngineConfig{TopN: 2})
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}
	t.Cleanup(ts.Engine.Close)

	ts.DB, err = database.NewDB(database.Config{Type: "sqlite", SQLitePath: filepath.Join(dir, "trending.db")})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { ts.DB.Close() })
	ts.Repo = database.NewTrendingRepository(ts.DB)

	app := &api.App{
		Recommender:   ts.Engine,
		Trending:      ts.Repo,
		TrendingLimit: trending.DefaultLimit,
		Checks:        map[string]api.Pinger{"database": ts.DB},
	}
	ts.API = httptest.NewServer(api.NewRouter(app, api.RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
	}))
	t.Cleanup(ts.API.Close)

	ts.Catalog = gateway.NewCatalog(tmdb, trending.NewRemoteStore(ts.API.URL, 5*time.Second, nil))
	ts.Recs = gateway.NewRecommendations(recommend.NewClient(ts.API.URL, 5*time.Second, nil), gateway.BreakerSettings{})
	return ts
}

func (ts *TestStack) NewSearch(t *testing.T) *orchestrator.Search {
	t.Helper()
	s := orchestrator.NewSearch(ts.Catalog, ts.Recs, orchestrator.WithDebounce(testDebounce))
	t.Cleanup(s.Close)
	return s
}

// fakeTMDb serves the subset of the TMDb API the client uses. The query
// "broken" answers with a logical failure payload.
func fakeTMDb(searches *atomic.Int32) http.Handler {
	r := chi.NewRouter()
	r.Get("/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"page": 1, "results": catalogMovies})
	})
	r.Get("/search/movie", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		q := strings.ToLower(r.URL.Query().Get("query"))
		if q == "broken" {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "status_message": "Invalid API key"})
			return
		}
		results := []models.Movie{}
		for _, m := range catalogMovies {
			if strings.Contains(strings.ToLower(m.Title), q) {
				results = append(results, m)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"page": 1, "results": results})
	})
	r.Get("/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(chi.URLParam(r, "id"))
		for _, m := range catalogMovies {
			if m.ID == id {
				writeJSON(w, http.StatusOK, m)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"status_message": "not found"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func waitForSearch(t *testing.T, s *orchestrator.Search, cond func(orchestrator.SearchState) bool) orchestrator.SearchState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st := s.State(); cond(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st := s.State()
	t.Fatalf("Condition not met, last state: %+v", st)
	return st
}

func titlesOf(movies []models.Movie) []string {
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.Title
	}
	return out
}
