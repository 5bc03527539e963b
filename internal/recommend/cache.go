package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/models"
)

const DefaultCacheTTL = time.Hour

// ResponseCache holds finished recommendation lists keyed by the requested title.
type ResponseCache interface {
	Get(ctx context.Context, title string) ([]models.Movie, bool)
	Set(ctx context.Context, title string, movies []models.Movie)
}

type MemoryCache struct {
	cache *ristretto.Cache[string, []models.Movie]
	ttl   time.Duration
}

var _ ResponseCache = (*MemoryCache)(nil)

func NewMemoryCache(maxEntries int64, ttl time.Duration) (*MemoryCache, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []models.Movie]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}
	return &MemoryCache{cache: c, ttl: ttl}, nil
}

func (c *MemoryCache) Get(_ context.Context, title string) ([]models.Movie, bool) {
	return c.cache.Get(title)
}

func (c *MemoryCache) Set(_ context.Context, title string, movies []models.Movie) {
	c.cache.SetWithTTL(title, movies, 1, c.ttl)
	c.cache.Wait()
}

func (c *MemoryCache) Close() {
	c.cache.Close()
}

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ResponseCache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, prefix: "moviescout:recommend:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, title string) ([]models.Movie, bool) {
	data, err := c.client.Get(ctx, c.prefix+title).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Warn().Err(err).Msg("[RECOMMEND] redis cache read failed")
		}
		return nil, false
	}
	var movies []models.Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, false
	}
	return movies, true
}

func (c *RedisCache) Set(ctx context.Context, title string, movies []models.Movie) {
	data, err := json.Marshal(movies)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+title, data, c.ttl).Err(); err != nil {
		logging.Warn().Err(err).Msg("[RECOMMEND] redis cache write failed")
	}
}

// Recommender is anything that produces recommendations for a title.
type Recommender interface {
	Recommend(ctx context.Context, title string) ([]models.Movie, error)
}

// Cached serves repeated titles from cache. Errors are never cached.
type Cached struct {
	next  Recommender
	cache ResponseCache
}

func NewCached(next Recommender, cache ResponseCache) *Cached {
	return &Cached{next: next, cache: cache}
}

func (c *Cached) Recommend(ctx context.Context, title string) ([]models.Movie, error) {
	if movies, ok := c.cache.Get(ctx, title); ok {
		metrics.CacheHitsTotal.WithLabelValues("recommendations").Inc()
		return movies, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("recommendations").Inc()

	movies, err := c.next.Recommend(ctx, title)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, title, movies)
	return movies, nil
}
