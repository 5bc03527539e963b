// Package trending counts which titles users land on and serves the
// most-searched list back.
package trending

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/kdimtricp/moviescout/internal/models"
)

const DefaultLimit = 5

// Selection is one reported search: the raw query and the movie it resolved to.
type Selection struct {
	Query     string       `json:"query"`
	Movie     models.Movie `json:"movie"`
	PosterURL string       `json:"poster_url,omitempty"`
}

// Store is a trending counter backend.
type Store interface {
	// List returns up to limit entries, most searched first.
	List(ctx context.Context, limit int) ([]models.TrendingEntry, error)
	// RecordSearch increments the counter for the selection's title,
	// creating it on first sight.
	RecordSearch(ctx context.Context, sel Selection) error
}

var folder = cases.Fold()

// Normalize maps a title to its counter key. Titles that differ only in case,
// Unicode composition or spacing share a key.
func Normalize(title string) string {
	s := norm.NFKC.String(title)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}
