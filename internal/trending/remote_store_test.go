package trending

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/moviescout/internal/models"
)

func TestRemoteStore_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/trending" {
			t.Errorf("Expected /api/trending, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("Expected limit=5, got %q", got)
		}
		w.Write([]byte(`[{"external_id":"a","title":"First"},{"external_id":"b","title":"Second"}]`))
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, 0, http.DefaultTransport)
	entries, err := store.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Title != "First" || entries[1].Title != "Second" {
		t.Errorf("Order not preserved: %+v", entries)
	}
}

func TestRemoteStore_RecordSearch(t *testing.T) {
	var got Selection
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/trending/searches" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, 0, http.DefaultTransport)
	sel := Selection{Query: "matrix", Movie: models.Movie{ID: 603, Title: "The Matrix"}}
	if err := store.RecordSearch(context.Background(), sel); err != nil {
		t.Fatalf("RecordSearch failed: %v", err)
	}
	if got.Query != "matrix" || got.Movie.ID != 603 {
		t.Errorf("Unexpected selection sent: %+v", got)
	}
}

func TestRemoteStore_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, 0, http.DefaultTransport)
	_, err := store.List(context.Background(), 5)

	var reqErr *models.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", reqErr.StatusCode)
	}
}
