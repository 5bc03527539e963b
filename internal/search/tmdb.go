package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p"

	maxErrorBody = 4096
)

type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Timeout      time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	Transport http.RoundTripper
}

type TMDbClient struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// movieList covers both the search and discover payloads. Response, Error and
// Success are set only when the upstream reports a logical failure.
type movieList struct {
	Page          int            `json:"page"`
	Results       []models.Movie `json:"results"`
	TotalResults  int            `json:"total_results"`
	Response      string         `json:"response"`
	Error         string         `json:"error"`
	Success       *bool          `json:"success"`
	StatusMessage string         `json:"status_message"`
}

func (l *movieList) failure() (string, bool) {
	if strings.EqualFold(l.Response, "False") || (l.Success != nil && !*l.Success) {
		if l.Error != "" {
			return l.Error, true
		}
		return l.StatusMessage, true
	}
	return "", false
}

func NewTMDbClient(cfg Config) *TMDbClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = DefaultImageBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	c := &TMDbClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// SearchMovies queries the catalog by title. An empty query returns the
// popularity-sorted discover listing instead.
func (c *TMDbClient) SearchMovies(ctx context.Context, query string) ([]models.Movie, error) {
	params := url.Values{}
	endpoint := "/discover/movie"
	op := "discover movies"
	if query != "" {
		endpoint = "/search/movie"
		op = "search movies"
		params.Set("query", query)
	} else {
		params.Set("sort_by", "popularity.desc")
	}

	var list movieList
	if err := c.get(ctx, op, endpoint, params, &list); err != nil {
		return nil, err
	}

	if msg, failed := list.failure(); failed {
		metrics.UpstreamRequestsTotal.WithLabelValues("tmdb", "upstream_error").Inc()
		return nil, &models.UpstreamError{Message: msg}
	}

	if list.Results == nil {
		return []models.Movie{}, nil
	}
	return list.Results, nil
}

// GetMovie fetches full details for one movie id.
func (c *TMDbClient) GetMovie(ctx context.Context, id int) (*models.Movie, error) {
	params := url.Values{}
	params.Set("language", "en-US")

	var movie models.Movie
	if err := c.get(ctx, "get movie", "/movie/"+strconv.Itoa(id), params, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

func (c *TMDbClient) GetImageURL(path string, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.imageBaseURL, size, path)
}

func (c *TMDbClient) get(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &models.RequestError{Op: op, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
		}
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &models.RequestError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("tmdb").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("tmdb", "transport_error").Inc()
		return &models.RequestError{Op: op, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues("tmdb", "status_error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &models.RequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("TMDb API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("tmdb", "decode_error").Inc()
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &models.RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("tmdb", "ok").Inc()
	return nil
}
