package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/recommend"
	"github.com/kdimtricp/moviescout/internal/trending"
)

type stubRecommender struct {
	lastTitle string
	movies    []models.Movie
	err       error
}

func (s *stubRecommender) Recommend(_ context.Context, title string) ([]models.Movie, error) {
	s.lastTitle = title
	return s.movies, s.err
}

type stubStore struct {
	entries   []models.TrendingEntry
	lastLimit int
	recorded  []trending.Selection
	err       error
}

func (s *stubStore) List(_ context.Context, limit int) ([]models.TrendingEntry, error) {
	s.lastLimit = limit
	return s.entries, s.err
}

func (s *stubStore) RecordSearch(_ context.Context, sel trending.Selection) error {
	s.recorded = append(s.recorded, sel)
	return s.err
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func newTestServer(t *testing.T, app *App, cfg RouterConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(app, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body
}

func TestHomeAndHealth(t *testing.T) {
	srv := newTestServer(t, &App{}, RouterConfig{})

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", body)
	}
}

func TestHealth_FailingCheck(t *testing.T) {
	app := &App{Checks: map[string]Pinger{"database": stubPinger{err: errors.New("down")}}}
	srv := newTestServer(t, app, RouterConfig{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestRecommendHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantTitle  string
	}{
		{"plain title", "/api/recommend/Avatar", nil, http.StatusOK, "Avatar"},
		{"escaped space", "/api/recommend/The%20Matrix", nil, http.StatusOK, "The Matrix"},
		{"escaped slash", "/api/recommend/Face%2FOff", nil, http.StatusOK, "Face/Off"},
		{"unknown title", "/api/recommend/Nope", recommend.ErrMovieNotFound, http.StatusNotFound, "Nope"},
		{"engine failure", "/api/recommend/Avatar", errors.New("tmdb down"), http.StatusInternalServerError, "Avatar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubRecommender{movies: []models.Movie{{ID: 2, Title: "B"}, {ID: 1, Title: "A"}}, err: tt.err}
			srv := newTestServer(t, &App{Recommender: rec}, RouterConfig{})

			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if rec.lastTitle != tt.wantTitle {
				t.Errorf("Expected title %q, got %q", tt.wantTitle, rec.lastTitle)
			}
			if tt.wantStatus != http.StatusOK {
				body := decodeError(t, resp)
				if body.Status != tt.wantStatus || body.Message == "" {
					t.Errorf("Unexpected error body: %+v", body)
				}
				return
			}
			var movies []models.Movie
			json.NewDecoder(resp.Body).Decode(&movies)
			if len(movies) != 2 || movies[0].ID != 2 {
				t.Errorf("Order not preserved: %+v", movies)
			}
		})
	}
}

func TestListTrendingHandler(t *testing.T) {
	store := &stubStore{entries: []models.TrendingEntry{{ExternalID: "a", Title: "A"}, {ExternalID: "b", Title: "B"}}}
	srv := newTestServer(t, &App{Trending: store, TrendingLimit: 5}, RouterConfig{})

	resp, err := http.Get(srv.URL + "/api/trending")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	var entries []models.TrendingEntry
	json.NewDecoder(resp.Body).Decode(&entries)
	if len(entries) != 2 || entries[0].ExternalID != "a" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
	if store.lastLimit != 5 {
		t.Errorf("Expected default limit 5, got %d", store.lastLimit)
	}

	for _, bad := range []string{"0", "abc", "51"} {
		resp, err := http.Get(srv.URL + "/api/trending?limit=" + bad)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", bad, resp.StatusCode)
		}
	}
}

func TestRecordSearchHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"query":"matrix","movie":{"id":603,"title":"The Matrix"}}`, http.StatusNoContent},
		{"missing title", `{"query":"matrix","movie":{"id":603}}`, http.StatusBadRequest},
		{"bad poster url", `{"query":"m","movie":{"id":1,"title":"M"},"poster_url":"not a url"}`, http.StatusBadRequest},
		{"malformed", `{"query":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{}
			srv := newTestServer(t, &App{Trending: store}, RouterConfig{})

			resp, err := http.Post(srv.URL+"/api/trending/searches", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantStatus == http.StatusNoContent && (len(store.recorded) != 1 || store.recorded[0].Movie.ID != 603) {
				t.Errorf("Selection not recorded: %+v", store.recorded)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	store := &stubStore{}
	srv := newTestServer(t, &App{Trending: store}, RouterConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/api/trending")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("Expected third request to be limited, got %d", last)
	}

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health must be exempt from the limit, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	srv := newTestServer(t, &App{Trending: &stubStore{}}, RouterConfig{Gatherer: reg})

	resp, err := http.Get(srv.URL + "/api/trending")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	if !strings.Contains(string(body), `moviescout_http_requests_total{method="GET",route="/api/trending",status="200"}`) {
		t.Errorf("Expected route-labelled request counter in:\n%s", body)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	srv := newTestServer(t, &App{}, RouterConfig{})
	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if body := decodeError(t, resp); body.Status != http.StatusNotFound {
		t.Errorf("Unexpected body: %+v", body)
	}
}
