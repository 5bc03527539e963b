package gateway

import (
	"context"

	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/recommend"
)

// Recommendations is the breaker-guarded boundary to the recommendation service.
type Recommendations struct {
	client  recommend.Recommender
	breaker *breaker
}

func NewRecommendations(client recommend.Recommender, settings BreakerSettings) *Recommendations {
	return &Recommendations{
		client:  client,
		breaker: newBreaker("recommendations", settings),
	}
}

func (r *Recommendations) Recommend(ctx context.Context, title string) ([]models.Movie, error) {
	const op = "recommend"
	movies, err := execute(r.breaker, op, func() ([]models.Movie, error) {
		return r.client.Recommend(ctx, title)
	})
	if err != nil {
		return nil, asRequestError(op, err)
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	return movies, nil
}
