package trending

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
)

// RemoteStore talks to a trending store exposed over HTTP by cmd/server.
type RemoteStore struct {
	baseURL    string
	httpClient *http.Client
}

var _ Store = (*RemoteStore)(nil)

func NewRemoteStore(baseURL string, timeout time.Duration, transport http.RoundTripper) *RemoteStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return &RemoteStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (s *RemoteStore) List(ctx context.Context, limit int) ([]models.TrendingEntry, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/trending?"+params.Encode(), nil)
	if err != nil {
		return nil, &models.RequestError{Op: "list trending", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("accept", "application/json")

	resp, err := s.do(req, "list trending")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []models.TrendingEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &models.RequestError{Op: "list trending", StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if entries == nil {
		entries = []models.TrendingEntry{}
	}
	return entries, nil
}

func (s *RemoteStore) RecordSearch(ctx context.Context, sel Selection) error {
	body, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encoding selection: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/trending/searches", bytes.NewReader(body))
	if err != nil {
		return &models.RequestError{Op: "record search", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req, "record search")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (s *RemoteStore) do(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("trending").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("trending", "transport_error").Inc()
		return nil, &models.RequestError{Op: op, Err: fmt.Errorf("executing request: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		metrics.UpstreamRequestsTotal.WithLabelValues("trending", "status_error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &models.RequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("trending API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("trending", "ok").Inc()
	return resp, nil
}
