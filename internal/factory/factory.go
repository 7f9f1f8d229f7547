package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/avalon/internal/config"
	"github.com/mcoot/avalon/internal/dependencies/clock"
	"github.com/mcoot/avalon/internal/dependencies/random"
	"github.com/mcoot/avalon/internal/metrics"
	"github.com/mcoot/avalon/internal/services/game"
	"github.com/mcoot/avalon/internal/services/notifier"
	"github.com/mcoot/avalon/internal/storage"
	"github.com/mcoot/avalon/internal/storage/cache"
	"github.com/mcoot/avalon/internal/storage/memory"
	postgresstorage "github.com/mcoot/avalon/internal/storage/postgres"
	redisstorage "github.com/mcoot/avalon/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageTypeMemory
	StorageTypeRedis    = config.StorageTypeRedis
	StorageTypePostgres = config.StorageTypePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Random  random.Random
	Metrics *metrics.Metrics

	// Services
	GameController *game.Controller
	Notifier       *notifier.Notifier
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *postgresstorage.Config
	// CacheSize puts an LRU document cache of this size in front of a remote backend.
	// Zero disables it; the memory backend is never cached.
	CacheSize int
}

// FromEnv builds a factory Config from parsed server settings
func FromEnv(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
		CacheSize:   cfg.GameCacheSize,
	}
	switch cfg.StorageType {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.GameTTL = cfg.GameTTL
		out.RedisConfig = &redisCfg
	case StorageTypePostgres:
		pgCfg := postgresstorage.DefaultConfig()
		pgCfg.DSN = cfg.PostgresDSN
		out.PostgresConfig = &pgCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(store, clock.New(), random.New(), metrics.New(), logger), nil
}

func newStorage(cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	var store storage.Storage
	switch storageType {
	case StorageTypeMemory:
		return memory.New(logger), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := postgresstorage.New(*cfg.PostgresConfig, logger)
		if err != nil {
			return nil, err
		}
		store = pgStore
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis or postgres", storageType)
	}

	if cfg.CacheSize <= 0 {
		return store, nil
	}
	cached, err := cache.New(store, cfg.CacheSize, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, m *metrics.Metrics, logger *slog.Logger) *App {
	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Metrics:        m,
		GameController: game.NewController(store, clk, rnd, m, logger),
		Notifier:       notifier.New(store, m, logger),
	}
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
