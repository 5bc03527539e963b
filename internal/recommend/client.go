package recommend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
)

// MaxResults caps what the client keeps from a response.
const MaxResults = 5

// Client calls a remote recommendation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Recommender = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, transport http.RoundTripper) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Recommend fetches titles similar to title, in the order the service returns them.
func (c *Client) Recommend(ctx context.Context, title string) ([]models.Movie, error) {
	const op = "recommend"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/recommend/"+url.PathEscape(title), nil)
	if err != nil {
		return nil, &models.RequestError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("recommend").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("recommend", "transport_error").Inc()
		return nil, &models.RequestError{Op: op, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues("recommend", "status_error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &models.RequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("recommendation API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var movies []models.Movie
	if err := json.NewDecoder(resp.Body).Decode(&movies); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("recommend", "decode_error").Inc()
		return nil, &models.RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("recommend", "ok").Inc()

	if movies == nil {
		movies = []models.Movie{}
	}
	if len(movies) > MaxResults {
		movies = movies[:MaxResults]
	}
	return movies, nil
}
