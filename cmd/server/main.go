// Package main is the entry point of the practice-hub HTTP API.
//
// The server records practice sessions and curriculum progress, serves
// stats and the leaderboard, and publishes domain events. With Redis
// configured, leaderboard snapshots are shared and rebuilt by cmd/worker;
// without it the server keeps and refreshes its own snapshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/application/command"
	"github.com/alem-hub/practice-hub/internal/application/eventhandler"
	"github.com/alem-hub/practice-hub/internal/application/query"
	"github.com/alem-hub/practice-hub/internal/bootstrap"
	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/infrastructure/scheduler"
	"github.com/alem-hub/practice-hub/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/practice-hub/internal/infrastructure/service"
	httpserver "github.com/alem-hub/practice-hub/internal/interface/http"
	"github.com/alem-hub/practice-hub/internal/interface/http/handlers"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := bootstrap.Logger(cfg, "server")
	defer func() { _ = log.Sync() }()

	log.Info("starting practice-hub server",
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Zone.String()),
	)

	cats, err := bootstrap.Catalogs(cfg)
	if err != nil {
		return fmt.Errorf("failed to load catalogs: %w", err)
	}
	policy := command.PolicyFromConfig(cfg.Policy, cfg.App.Zone)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Storage, cache and event bus
	// ─────────────────────────────────────────────────────────────────────────
	storage, err := bootstrap.OpenStorage(ctx, cfg, policy.Stats, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	cache := bootstrap.OpenCache(ctx, cfg, log)
	if cache != nil {
		defer func() { _ = cache.Close() }()
	}

	bus, err := bootstrap.OpenEventBus(cache, log)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Engine and leaderboard
	// ─────────────────────────────────────────────────────────────────────────
	board := service.NewLeaderboardService(storage.Leaderboard, bootstrap.LeaderboardCache(cache),
		service.WithFeatures(cfg.Features),
		service.WithLogger(log),
	)

	machine := curriculum.NewMachine(cats.Curriculum)
	engine := command.NewEngine(storage.Store, badge.NewEvaluator(cats.Badges), machine, policy,
		command.WithFeatures(cfg.Features),
		command.WithPublisher(bus),
		command.WithLogger(log),
	)

	// A process-local snapshot has no worker to refresh it. With Redis,
	// cmd/worker owns both the schedule and event-driven rebuilds.
	if cache == nil {
		onStats := eventhandler.NewOnStatsChangedHandler(board, log, eventhandler.DefaultStatsChangedConfig())
		if err := onStats.Subscribe(bus); err != nil {
			return fmt.Errorf("failed to subscribe leaderboard refresher: %w", err)
		}
		go onStats.Run(ctx)

		if cfg.Scheduler.Enabled {
			sched, err := startScheduler(ctx, cfg, board, bus, log)
			if err != nil {
				return err
			}
			defer func() { _ = sched.Stop() }()
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if storage.Conn != nil {
		health.AddCheck("postgres", handlers.NewDatabaseCheck(storage.Conn))
	}
	if cache != nil {
		health.AddOptionalCheck("redis", handlers.NewCacheCheck(cache))
	}
	maxAge := 3 * cfg.Scheduler.LeaderboardRefreshInterval
	health.AddOptionalCheck("leaderboard", handlers.NewSnapshotAgeCheck(func(ctx context.Context) (time.Duration, bool, error) {
		meta, err := board.Meta(ctx)
		if errors.Is(err, leaderboard.ErrCacheMiss) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return meta.Age(time.Now()), true, nil
	}, maxAge))

	var graderAuth *handlers.GraderAuth
	if cfg.HTTP.GraderKeyHash != "" {
		graderAuth, err = handlers.NewGraderAuth(cfg.HTTP.GraderKeyHash)
		if err != nil {
			return err
		}
	} else {
		log.Warn("GRADER_KEY_HASH not set, milestone grading is disabled")
	}

	var limiter *handlers.RateLimiter
	if cfg.HTTP.RateLimitPerMinute > 0 {
		rl := handlers.DefaultRateLimitConfig()
		rl.RequestsPerMinute = cfg.HTTP.RateLimitPerMinute
		rl.BurstSize = cfg.HTTP.RateLimitBurst
		limiter = handlers.NewRateLimiter(rl)
		defer limiter.Close()
	}

	server := httpserver.NewServer(httpserver.ConfigFrom(cfg.HTTP), httpserver.Dependencies{
		RecordSession:    command.NewRecordSessionHandler(engine),
		DeleteSession:    command.NewDeleteSessionHandler(engine),
		PurchaseShield:   command.NewPurchaseShieldHandler(engine),
		SetVisibility:    command.NewSetLeaderboardVisibilityHandler(storage.Leaderboard, engine),
		MarkStepComplete: command.NewMarkStepCompleteHandler(engine),
		FixProgress:      command.NewFixProgressHandler(engine),
		SubmitMilestone:  command.NewSubmitMilestoneHandler(engine),
		GradeMilestone:   command.NewGradeMilestoneHandler(engine),
		GetUserStats:     query.NewGetUserStatsHandler(storage.Store, policy.Levels, cats.Badges),
		ListSessions:     query.NewListSessionsHandler(storage.Store),
		GetLeaderboard:   query.NewGetLeaderboardHandler(board),
		GetPosition:      query.NewGetLeaderboardPositionHandler(board),
		GetAssignment:    query.NewGetCurrentAssignmentHandler(storage.Store, machine),
		GraderAuth:       graderAuth,
		RateLimiter:      limiter,
		HealthChecker:    health,
		Logger:           log,
		Version:          cfg.App.Version,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}
	log.Info("shutdown completed")
	return nil
}

// startScheduler runs the leaderboard refresh inside the API process.
func startScheduler(ctx context.Context, cfg *config.Config, board *service.LeaderboardService, bus bootstrap.EventBus, log *logger.Logger) (*scheduler.Scheduler, error) {
	schedule, err := scheduler.ScheduleFor(cfg.Scheduler.LeaderboardRefreshInterval, cfg.Scheduler.LeaderboardRefreshCron)
	if err != nil {
		return nil, fmt.Errorf("invalid leaderboard refresh schedule: %w", err)
	}

	sched := scheduler.New(scheduler.Config{
		Logger:        log,
		Location:      cfg.App.Zone.Location(),
		MaxConcurrent: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:    cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(jobs.NewRefreshLeaderboardJob(board, bus, log), schedule); err != nil {
		return nil, err
	}
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	return sched, nil
}
