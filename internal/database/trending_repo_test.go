package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/trending"
)

var backends = []struct {
	name  string
	setup func(t *testing.T) (*DB, func())
}{
	{"sqlite", setupSQLiteDB},
	{"postgres", setupPostgresDB},
}

func selection(query string, id int, title string) trending.Selection {
	return trending.Selection{
		Query:     query,
		Movie:     models.Movie{ID: id, Title: title, PosterPath: "/p.jpg"},
		PosterURL: "https://image.tmdb.org/t/p/w500/p.jpg",
	}
}

func TestTrendingRepository_RecordSearch_CreatesThenIncrements(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			db, cleanup := b.setup(t)
			defer cleanup()

			repo := NewTrendingRepository(db)
			ctx := context.Background()

			if err := repo.RecordSearch(ctx, selection("matrix", 603, "The Matrix")); err != nil {
				t.Fatalf("Failed to record search: %v", err)
			}

			first, err := repo.GetByTitle(ctx, "The Matrix")
			if err != nil {
				t.Fatalf("Failed to get record: %v", err)
			}
			if first.Count != 1 {
				t.Errorf("Expected count 1, got %d", first.Count)
			}

			if err := repo.RecordSearch(ctx, selection("the  MATRIX", 603, "the matrix")); err != nil {
				t.Fatalf("Failed to record search: %v", err)
			}

			second, err := repo.GetByTitle(ctx, "THE MATRIX")
			if err != nil {
				t.Fatalf("Failed to get record: %v", err)
			}
			if second.Count != 2 {
				t.Errorf("Expected count 2, got %d", second.Count)
			}
			if second.ID != first.ID {
				t.Errorf("Expected external id to be stable, got %s then %s", first.ID, second.ID)
			}
			if second.SearchTerm != "the  MATRIX" {
				t.Errorf("Expected latest search term, got %q", second.SearchTerm)
			}
		})
	}
}

func TestTrendingRepository_List_OrderedByCount(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			db, cleanup := b.setup(t)
			defer cleanup()

			repo := NewTrendingRepository(db)
			ctx := context.Background()

			counts := map[string]int{
				"Inception":    3,
				"The Matrix":   5,
				"Heat":         1,
				"Alien":        2,
				"Jaws":         4,
				"Casablanca":   1,
				"Interstellar": 6,
			}
			id := 1
			for title, n := range counts {
				for i := 0; i < n; i++ {
					if err := repo.RecordSearch(ctx, selection(title, id, title)); err != nil {
						t.Fatalf("Failed to record search: %v", err)
					}
				}
				id++
			}

			entries, err := repo.List(ctx, trending.DefaultLimit)
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}

			want := []string{"Interstellar", "The Matrix", "Jaws", "Inception", "Alien"}
			if len(entries) != len(want) {
				t.Fatalf("Expected %d entries, got %d", len(want), len(entries))
			}
			for i, title := range want {
				if entries[i].Title != title {
					t.Errorf("Rank %d: expected %s, got %s", models.Rank(i), title, entries[i].Title)
				}
			}
		})
	}
}

func TestTrendingRepository_List_TieBreaksOnRecency(t *testing.T) {
	db, cleanup := setupSQLiteDB(t)
	defer cleanup()

	repo := NewTrendingRepository(db)
	ctx := context.Background()

	if err := repo.RecordSearch(ctx, selection("heat", 1, "Heat")); err != nil {
		t.Fatalf("Failed to record search: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := repo.RecordSearch(ctx, selection("alien", 2, "Alien")); err != nil {
		t.Fatalf("Failed to record search: %v", err)
	}

	entries, err := repo.List(ctx, 5)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 2 || entries[0].Title != "Alien" {
		t.Errorf("Expected most recent title first on tie, got %+v", entries)
	}
}

func TestTrendingRepository_ConcurrentIncrements(t *testing.T) {
	db, cleanup := setupSQLiteDB(t)
	defer cleanup()

	repo := NewTrendingRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.RecordSearch(ctx, selection("matrix", 603, "The Matrix")); err != nil {
				t.Errorf("Failed to record search: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := repo.GetByTitle(ctx, "the matrix")
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if rec.Count != 20 {
		t.Errorf("Expected count 20, got %d", rec.Count)
	}
}

func TestTrendingRepository_GetByTitle_NotFound(t *testing.T) {
	db, cleanup := setupSQLiteDB(t)
	defer cleanup()

	repo := NewTrendingRepository(db)

	_, err := repo.GetByTitle(context.Background(), "Nothing Here")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestTrendingRepository_RecordSearch_RejectsEmptyTitle(t *testing.T) {
	db, cleanup := setupSQLiteDB(t)
	defer cleanup()

	repo := NewTrendingRepository(db)
	if err := repo.RecordSearch(context.Background(), selection("x", 1, "   ")); err == nil {
		t.Error("Expected error for empty title")
	}
}
