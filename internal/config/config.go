// Package config loads moviescout settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	TMDb      TMDbConfig      `koanf:"tmdb"`
	Recommend RecommendConfig `koanf:"recommend"`
	Trending  TrendingConfig  `koanf:"trending"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Server    ServerConfig    `koanf:"server"`
	Search    SearchConfig    `koanf:"search"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type TMDbConfig struct {
	// APIKey may be empty; requests then fail with 401 instead of at startup.
	APIKey       string        `koanf:"api_key"`
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	ImageBaseURL string        `koanf:"image_base_url" validate:"required,url"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit    float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst        int           `koanf:"burst" validate:"gte=0"`
}

type RecommendConfig struct {
	URL         string        `koanf:"url" validate:"required,url"`
	DatasetDir  string        `koanf:"dataset_dir"`
	DatasetFile string        `koanf:"dataset_file"`
	TopN        int           `koanf:"top_n" validate:"gte=1,lte=20"`
	MaxFeatures int           `koanf:"max_features" validate:"gte=1"`
	CacheTTL    time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

type TrendingConfig struct {
	Backend string `koanf:"backend" validate:"oneof=sqlite postgres redis remote"`
	Limit   int    `koanf:"limit" validate:"gte=1,lte=50"`
	URL     string `koanf:"url" validate:"required_if=Backend remote"`
}

type DatabaseConfig struct {
	Type           string `koanf:"type" validate:"oneof=sqlite postgres"`
	Path           string `koanf:"path"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port" validate:"gte=0,lte=65535"`
	User           string `koanf:"user"`
	Password       string `koanf:"password"`
	Name           string `koanf:"name"`
	MigrationsPath string `koanf:"migrations_path"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type ServerConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type SearchConfig struct {
	Debounce      time.Duration `koanf:"debounce" validate:"gt=0"`
	ReportTimeout time.Duration `koanf:"report_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

func defaultConfig() *Config {
	return &Config{
		TMDb: TMDbConfig{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p",
			Timeout:      30 * time.Second,
			RateLimit:    40,
			Burst:        10,
		},
		Recommend: RecommendConfig{
			URL:         "http://127.0.0.1:8080",
			DatasetDir:  "./data",
			DatasetFile: "movies.json",
			TopN:        5,
			MaxFeatures: 5000,
			CacheTTL:    time.Hour,
		},
		Trending: TrendingConfig{
			Backend: "sqlite",
			Limit:   5,
			URL:     "http://127.0.0.1:8080",
		},
		Database: DatabaseConfig{
			Type:           "sqlite",
			Path:           "./moviescout.db",
			Host:           "localhost",
			Port:           5432,
			User:           "moviescout",
			Password:       "moviescout_dev",
			Name:           "moviescout",
			MigrationsPath: "./migrations",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			RateLimitRequests: 100,
			RateLimitWindow:   60 * time.Second,
			CORSOrigins:       []string{"*"},
			ShutdownTimeout:   10 * time.Second,
		},
		Search: SearchConfig{
			Debounce:      time.Second,
			ReportTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// envMappings maps environment variables to koanf paths. Variables not listed
// here are ignored.
var envMappings = map[string]string{
	"TMDB_API_KEY":           "tmdb.api_key",
	"TMDB_BASE_URL":          "tmdb.base_url",
	"TMDB_IMAGE_BASE_URL":    "tmdb.image_base_url",
	"TMDB_TIMEOUT":           "tmdb.timeout",
	"TMDB_RATE_LIMIT":        "tmdb.rate_limit",
	"TMDB_BURST":             "tmdb.burst",
	"RECOMMENDATION_API_URL": "recommend.url",
	"RECOMMEND_DATASET_DIR":  "recommend.dataset_dir",
	"RECOMMEND_DATASET_FILE": "recommend.dataset_file",
	"RECOMMEND_TOP_N":        "recommend.top_n",
	"RECOMMEND_MAX_FEATURES": "recommend.max_features",
	"RECOMMEND_CACHE_TTL":    "recommend.cache_ttl",
	"TRENDING_BACKEND":       "trending.backend",
	"TRENDING_LIMIT":         "trending.limit",
	"TRENDING_API_URL":       "trending.url",
	"DB_TYPE":                "database.type",
	"DB_PATH":                "database.path",
	"DB_HOST":                "database.host",
	"DB_PORT":                "database.port",
	"DB_USER":                "database.user",
	"DB_PASSWORD":            "database.password",
	"DB_NAME":                "database.name",
	"MIGRATIONS_PATH":        "database.migrations_path",
	"REDIS_URL":              "redis.url",
	"HTTP_ADDR":              "server.addr",
	"RATE_LIMIT_REQUESTS":    "server.rate_limit_requests",
	"RATE_LIMIT_PERIOD":      "server.rate_limit_window",
	"CORS_ORIGINS":           "server.cors_origins",
	"SHUTDOWN_TIMEOUT":       "server.shutdown_timeout",
	"SEARCH_DEBOUNCE":        "search.debounce",
	"SEARCH_REPORT_TIMEOUT":  "search.report_timeout",
	"LOG_LEVEL":              "logging.level",
	"LOG_FORMAT":             "logging.format",
}

func envTransform(key string) string {
	return envMappings[key]
}

// Load reads .env (if present), then layers defaults, config file and env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	overrides := map[string]any{}
	// The frontend-era name is accepted when the canonical one is unset.
	if os.Getenv("TMDB_API_KEY") == "" {
		if key := os.Getenv("VITE_TMDB_API_KEY"); key != "" {
			overrides["tmdb.api_key"] = key
		}
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDR") == "" {
		overrides["server.addr"] = ":" + port
	}
	if origins, ok := k.Get("server.cors_origins").(string); ok {
		overrides["server.cors_origins"] = splitList(origins)
	}
	for key, val := range overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	return validate.Struct(c)
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
