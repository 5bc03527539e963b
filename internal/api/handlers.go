package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/recommend"
	"github.com/kdimtricp/moviescout/internal/trending"
)

const (
	maxTrendingLimit = 50
	maxBodyBytes     = 64 << 10
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain ping function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type App struct {
	Recommender   recommend.Recommender
	Trending      trending.Store
	TrendingLimit int
	Checks        map[string]Pinger
}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type recordSearchRequest struct {
	Query     string       `json:"query" validate:"max=200"`
	Movie     models.Movie `json:"movie"`
	PosterURL string       `json:"poster_url" validate:"omitempty,url"`
}

type movieRef struct {
	ID    int    `validate:"gte=0"`
	Title string `validate:"required,max=500"`
}

var validate = validator.New()

func HomeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Welcome to the Movie Recommendation API!"))
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range app.Checks {
		if err := check.PingContext(ctx); err != nil {
			logging.Warn().Err(err).Str("check", name).Msg("[API] health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "failed": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (app *App) RecommendHandler(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "movie")
	// chi matches on the raw path when the request carried escapes the
	// decoded path cannot represent, e.g. %2F inside a title.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(title)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid movie title")
			return
		}
		title = unescaped
	}

	movies, err := app.Recommender.Recommend(r.Context(), title)
	if err != nil {
		if errors.Is(err, recommend.ErrMovieNotFound) {
			writeError(w, http.StatusNotFound, "Movie '"+title+"' not found in database")
			return
		}
		logging.Error().Err(err).Str("title", title).Msg("[API] recommendation failed")
		writeError(w, http.StatusInternalServerError, "Failed to get recommendations")
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

func (app *App) ListTrendingHandler(w http.ResponseWriter, r *http.Request) {
	limit := app.TrendingLimit
	if limit <= 0 {
		limit = trending.DefaultLimit
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTrendingLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxTrendingLimit))
			return
		}
		limit = n
	}

	entries, err := app.Trending.List(r.Context(), limit)
	if err != nil {
		logging.Error().Err(err).Msg("[API] failed to list trending")
		writeError(w, http.StatusInternalServerError, "Failed to list trending movies")
		return
	}
	if entries == nil {
		entries = []models.TrendingEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (app *App) RecordSearchHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req recordSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(movieRef{ID: req.Movie.ID, Title: req.Movie.Title}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sel := trending.Selection{Query: req.Query, Movie: req.Movie, PosterURL: req.PosterURL}
	if err := app.Trending.RecordSearch(r.Context(), sel); err != nil {
		logging.Error().Err(err).Str("title", req.Movie.Title).Msg("[API] failed to record search")
		writeError(w, http.StatusInternalServerError, "Failed to record search")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("[API] failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message, Status: status})
}
