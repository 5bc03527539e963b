package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Movie is a catalog title. Optional fields are empty when upstream omits them.
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	PosterPath       string  `json:"poster_path,omitempty"`
	VoteAverage      float64 `json:"vote_average,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
}

// TrendingEntry is one row of the trending list. Its position in the list is its rank.
type TrendingEntry struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	PosterURL  string `json:"poster_url"`
}

// Rank returns the 1-based rank for the entry at index i.
func Rank(i int) int {
	return i + 1
}

// SearchRecord is the stored counter row behind a TrendingEntry.
type SearchRecord struct {
	ID         string
	TitleKey   string
	SearchTerm string
	Title      string
	MovieID    int
	PosterURL  string
	Count      int64
	UpdatedAt  time.Time
}

func NewSearchRecord(titleKey, searchTerm string, movie Movie, posterURL string) *SearchRecord {
	return &SearchRecord{
		ID:         uuid.New().String(),
		TitleKey:   titleKey,
		SearchTerm: strings.TrimSpace(searchTerm),
		Title:      movie.Title,
		MovieID:    movie.ID,
		PosterURL:  posterURL,
		Count:      1,
		UpdatedAt:  time.Now().UTC(),
	}
}

func (r *SearchRecord) Entry() TrendingEntry {
	return TrendingEntry{
		ExternalID: r.ID,
		Title:      r.Title,
		PosterURL:  r.PosterURL,
	}
}
