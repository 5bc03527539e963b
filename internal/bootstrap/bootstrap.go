// Package bootstrap builds the shared clients and stores from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kdimtricp/moviescout/internal/config"
	"github.com/kdimtricp/moviescout/internal/database"
	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/search"
	"github.com/kdimtricp/moviescout/internal/trending"
)

func NewTMDbClient(cfg config.TMDbConfig) *search.TMDbClient {
	return search.NewTMDbClient(search.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		ImageBaseURL: cfg.ImageBaseURL,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		Burst:        cfg.Burst,
	})
}

// TrendingBackend is an opened trending store plus its health probe and closer.
type TrendingBackend struct {
	Store trending.Store
	Ping  func(ctx context.Context) error
	Close func() error
}

func DatabaseConfig(cfg config.DatabaseConfig) database.Config {
	return database.Config{
		Type:       cfg.Type,
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		Name:       cfg.Name,
		SQLitePath: cfg.Path,
	}
}

// OpenTrending opens the configured trending backend. The remote backend is
// only valid for clients; the server that hosts the store passes allowRemote=false.
func OpenTrending(ctx context.Context, cfg *config.Config, allowRemote bool) (*TrendingBackend, error) {
	switch cfg.Trending.Backend {
	case "sqlite", "postgres":
		dbCfg := DatabaseConfig(cfg.Database)
		dbCfg.Type = cfg.Trending.Backend
		db, err := database.NewDB(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("opening trending database: %w", err)
		}
		if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		logging.Info().Str("backend", dbCfg.Type).Msg("[BOOT] trending store ready")
		return &TrendingBackend{
			Store: database.NewTrendingRepository(db),
			Ping:  db.PingContext,
			Close: db.Close,
		}, nil

	case "redis":
		client, err := OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		store := trending.NewRedisStore(client)
		logging.Info().Str("backend", "redis").Msg("[BOOT] trending store ready")
		return &TrendingBackend{Store: store, Ping: store.Ping, Close: client.Close}, nil

	case "remote":
		if !allowRemote {
			return nil, fmt.Errorf("trending backend %q cannot be served by this process", cfg.Trending.Backend)
		}
		store := trending.NewRemoteStore(cfg.Trending.URL, 10*time.Second, nil)
		logging.Info().Str("backend", "remote").Str("url", cfg.Trending.URL).Msg("[BOOT] trending store ready")
		return &TrendingBackend{Store: store, Close: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unsupported trending backend: %s", cfg.Trending.Backend)
	}
}

// OpenRedis parses url and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is not configured")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}
