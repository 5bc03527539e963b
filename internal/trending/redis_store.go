package trending

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kdimtricp/moviescout/internal/models"
)

const redisKeyPrefix = "moviescout:trending:"

// RedisStore keeps counts in a sorted set and entry details in one hash per title.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: redisKeyPrefix}
}

func (s *RedisStore) countsKey() string {
	return s.prefix + "counts"
}

func (s *RedisStore) entryKey(titleKey string) string {
	return s.prefix + "entry:" + titleKey
}

func (s *RedisStore) RecordSearch(ctx context.Context, sel Selection) error {
	key := Normalize(sel.Movie.Title)
	if key == "" {
		return fmt.Errorf("record search: movie has no title")
	}

	entryKey := s.entryKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, entryKey, "id", uuid.New().String())
		pipe.HSet(ctx, entryKey,
			"title", sel.Movie.Title,
			"poster_url", sel.PosterURL,
			"movie_id", strconv.Itoa(sel.Movie.ID),
			"search_term", sel.Query,
		)
		pipe.ZIncrBy(ctx, s.countsKey(), 1, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]models.TrendingEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	keys, err := s.client.ZRevRange(ctx, s.countsKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list trending: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, s.entryKey(key))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load trending entries: %w", err)
	}

	entries := make([]models.TrendingEntry, 0, len(keys))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		entries = append(entries, models.TrendingEntry{
			ExternalID: fields["id"],
			Title:      fields["title"],
			PosterURL:  fields["poster_url"],
		})
	}
	return entries, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
