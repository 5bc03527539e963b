package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/trending"
)

var ErrRecordNotFound = errors.New("search record not found")

// TrendingRepository is the SQL-backed trending counter.
type TrendingRepository struct {
	db *DB
}

var _ trending.Store = (*TrendingRepository)(nil)

func NewTrendingRepository(db *DB) *TrendingRepository {
	return &TrendingRepository{db: db}
}

// RecordSearch inserts a counter row for a new title key or bumps the existing one.
func (r *TrendingRepository) RecordSearch(ctx context.Context, sel trending.Selection) error {
	key := trending.Normalize(sel.Movie.Title)
	if key == "" {
		return fmt.Errorf("record search: movie has no title")
	}

	rec := models.NewSearchRecord(key, sel.Query, sel.Movie, sel.PosterURL)

	query := r.db.rebind(`
		INSERT INTO search_counts (id, title_key, search_term, title, movie_id, poster_url, count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (title_key) DO UPDATE SET
			count = search_counts.count + 1,
			search_term = excluded.search_term,
			poster_url = excluded.poster_url,
			updated_at = excluded.updated_at`)

	_, err := r.db.conn.ExecContext(ctx, query,
		rec.ID, rec.TitleKey, rec.SearchTerm, rec.Title, rec.MovieID, rec.PosterURL, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// List returns the most searched titles; ties go to the most recently searched.
func (r *TrendingRepository) List(ctx context.Context, limit int) ([]models.TrendingEntry, error) {
	if limit <= 0 {
		limit = trending.DefaultLimit
	}

	query := r.db.rebind(`
		SELECT id, title, poster_url
		FROM search_counts
		ORDER BY count DESC, updated_at DESC
		LIMIT ?`)

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trending: %w", err)
	}
	defer rows.Close()

	entries := make([]models.TrendingEntry, 0, limit)
	for rows.Next() {
		var e models.TrendingEntry
		if err := rows.Scan(&e.ExternalID, &e.Title, &e.PosterURL); err != nil {
			return nil, fmt.Errorf("failed to scan trending entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

func (r *TrendingRepository) GetByTitle(ctx context.Context, title string) (*models.SearchRecord, error) {
	query := r.db.rebind(`
		SELECT id, title_key, search_term, title, movie_id, poster_url, count, updated_at
		FROM search_counts
		WHERE title_key = ?`)

	var rec models.SearchRecord
	var updated time.Time
	err := r.db.conn.QueryRowContext(ctx, query, trending.Normalize(title)).Scan(
		&rec.ID, &rec.TitleKey, &rec.SearchTerm, &rec.Title, &rec.MovieID, &rec.PosterURL, &rec.Count, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get search record: %w", err)
	}
	rec.UpdatedAt = updated
	return &rec, nil
}
