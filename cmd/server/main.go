package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kdimtricp/moviescout/internal/api"
	"github.com/kdimtricp/moviescout/internal/bootstrap"
	"github.com/kdimtricp/moviescout/internal/config"
	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/metrics"
	"github.com/kdimtricp/moviescout/internal/recommend"
	"github.com/kdimtricp/moviescout/internal/server"
	"github.com/kdimtricp/moviescout/internal/storage"
	"github.com/kdimtricp/moviescout/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "moviescout-server")
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	if cfg.TMDb.APIKey == "" {
		logging.Warn().Msg("TMDB_API_KEY not set; movie detail lookups will fail with 401")
	}
	tmdb := bootstrap.NewTMDbClient(cfg.TMDb)

	datasetStore, err := storage.NewLocalStorage(cfg.Recommend.DatasetDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize dataset storage")
	}
	titles, err := recommend.LoadDataset(datasetStore, cfg.Recommend.DatasetFile)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load movie dataset")
	}
	engine, err := recommend.NewEngine(titles, tmdb, recommend.EngineConfig{
		TopN:        cfg.Recommend.TopN,
		MaxFeatures: cfg.Recommend.MaxFeatures,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build recommendation engine")
	}
	defer engine.Close()

	checks := map[string]api.Pinger{}

	var cache recommend.ResponseCache
	if cfg.Redis.URL != "" {
		client, err := bootstrap.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logging.Warn().Err(err).Msg("Redis unavailable, using in-memory response cache")
		} else {
			defer client.Close()
			cache = recommend.NewRedisCache(client, cfg.Recommend.CacheTTL)
			checks["redis"] = api.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		}
	}
	if cache == nil {
		mem, err := recommend.NewMemoryCache(1000, cfg.Recommend.CacheTTL)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create response cache")
		}
		defer mem.Close()
		cache = mem
	}

	backend, err := bootstrap.OpenTrending(ctx, cfg, false)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open trending store")
	}
	defer backend.Close()
	if backend.Ping != nil {
		checks["trending"] = api.PingFunc(backend.Ping)
	}

	app := &api.App{
		Recommender:   recommend.NewCached(engine, cache),
		Trending:      backend.Store,
		TrendingLimit: cfg.Trending.Limit,
		Checks:        checks,
	}

	httpServer := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(app, api.RouterConfig{
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
			CORSOrigins:       cfg.Server.CORSOrigins,
			Gatherer:          reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sup := server.NewSupervisor("moviescout")
	sup.Add(server.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Int("titles", len(titles)).
		Str("trending_backend", cfg.Trending.Backend).
		Msg("Server starting")

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor stopped")
	}
	logging.Info().Msg("Server stopped")
}
