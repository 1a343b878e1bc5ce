// Package bootstrap builds the dependencies shared by cmd/server and
// cmd/worker from configuration: logger, catalogs, storage, the Redis
// cache and the event bus.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/internal/infrastructure/catalog"
	"github.com/alem-hub/practice-hub/internal/infrastructure/messaging"
	"github.com/alem-hub/practice-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/practice-hub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/practice-hub/internal/infrastructure/persistence/projections"
	rediscache "github.com/alem-hub/practice-hub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return config.Load()
}

// Logger builds the process logger and installs it as the default.
func Logger(cfg *config.Config, process string) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Development = cfg.Observability.LogFormat == "console"
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	log := logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("process", process),
		logger.String("env", string(cfg.App.Environment)),
	)
	logger.SetDefault(log)
	return log
}

// Catalogs loads the badge and curriculum catalogs.
func Catalogs(cfg *config.Config) (*catalog.Catalogs, error) {
	return catalog.Load(catalog.Sources{
		BadgesPath:        cfg.Catalog.BadgesPath,
		CurriculumPath:    cfg.Catalog.CurriculumPath,
		DefaultBadges:     config.DefaultBadgeCatalog,
		DefaultCurriculum: config.DefaultCurriculumCatalog,
	}, cfg.Policy.CriteriaDefaults())
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// Storage is the configured StatsStore and leaderboard repository.
type Storage struct {
	Store       stats.Store
	Leaderboard leaderboard.Repository

	// Conn is nil for the in-memory store.
	Conn *postgres.Connection
}

// Close releases the database pool.
func (s *Storage) Close() {
	if s.Conn != nil {
		s.Conn.Close()
	}
}

// OpenStorage connects to Postgres when DATABASE_URL is set and migrates the
// schema if AutoMigrate is on. Without a URL it returns the in-memory store.
func OpenStorage(ctx context.Context, cfg *config.Config, limits stats.Limits, log *logger.Logger) (*Storage, error) {
	if !cfg.UsesPostgres() {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		store := memory.NewStore(limits)
		return &Storage{Store: store, Leaderboard: memory.NewLeaderboardRepository(store)}, nil
	}

	conn, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	return &Storage{
		Store:       postgres.NewStore(conn, limits),
		Leaderboard: postgres.NewLeaderboardRepository(conn),
		Conn:        conn,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE AND EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// OpenCache connects to Redis. It returns nil without error when Redis is
// disabled or unreachable; callers then fall back to in-process snapshots.
func OpenCache(ctx context.Context, cfg *config.Config, log *logger.Logger) *rediscache.Cache {
	if cfg.Redis.Disabled {
		log.Info("redis disabled, leaderboard snapshots stay in-process")
		return nil
	}
	cache, err := rediscache.NewCache(ctx, cfg.Redis)
	if err != nil {
		log.Warn("failed to connect to Redis, leaderboard snapshots stay in-process", logger.Err(err))
		return nil
	}
	log.Info("redis connection established")
	return cache
}

// LeaderboardCache returns the Redis snapshot cache, or the in-process view
// when cache is nil.
func LeaderboardCache(cache *rediscache.Cache) leaderboard.Cache {
	if cache == nil {
		return projections.NewLeaderboardView()
	}
	return rediscache.NewLeaderboardCache(cache)
}

// EventBus is a bus that can be closed.
type EventBus interface {
	shared.EventBus
	Close() error
}

// OpenEventBus fans events out over Redis pub/sub when a cache connection
// exists so every process sees them; otherwise events stay in-process.
func OpenEventBus(cache *rediscache.Cache, log *logger.Logger) (EventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = log

	if cache == nil {
		return messaging.NewInMemoryEventBus(local), nil
	}
	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         cache.Client(),
		Channel:        cache.Key("events"),
		LocalBusConfig: local,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis event bus: %w", err)
	}
	return bus, nil
}
