// Package main is the entry point of the practice-hub background worker.
//
// The worker rebuilds the shared leaderboard snapshot on a schedule and
// whenever ranking events arrive over the Redis event bus. It needs
// Postgres and Redis: an in-memory deployment has nothing to share and the
// API server refreshes its own snapshot instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/alem-hub/practice-hub/internal/application/command"
	"github.com/alem-hub/practice-hub/internal/application/eventhandler"
	"github.com/alem-hub/practice-hub/internal/bootstrap"
	"github.com/alem-hub/practice-hub/internal/infrastructure/scheduler"
	"github.com/alem-hub/practice-hub/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/practice-hub/internal/infrastructure/service"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

var (
	errNoDatabase = errors.New("worker requires DATABASE_URL")
	errNoRedis    = errors.New("worker requires a reachable Redis")
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
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := bootstrap.Logger(cfg, "worker")
	defer func() { _ = log.Sync() }()

	if !cfg.UsesPostgres() {
		return errNoDatabase
	}

	policy := command.PolicyFromConfig(cfg.Policy, cfg.App.Zone)
	storage, err := bootstrap.OpenStorage(ctx, cfg, policy.Stats, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	cache := bootstrap.OpenCache(ctx, cfg, log)
	if cache == nil {
		return errNoRedis
	}
	defer func() { _ = cache.Close() }()

	bus, err := bootstrap.OpenEventBus(cache, log)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	board := service.NewLeaderboardService(storage.Leaderboard, bootstrap.LeaderboardCache(cache),
		service.WithFeatures(cfg.Features),
		service.WithLogger(log),
	)

	onStats := eventhandler.NewOnStatsChangedHandler(board, log, eventhandler.DefaultStatsChangedConfig())
	if err := onStats.Subscribe(bus); err != nil {
		return fmt.Errorf("failed to subscribe leaderboard refresher: %w", err)
	}
	go onStats.Run(ctx)

	schedule, err := scheduler.ScheduleFor(cfg.Scheduler.LeaderboardRefreshInterval, cfg.Scheduler.LeaderboardRefreshCron)
	if err != nil {
		return fmt.Errorf("invalid leaderboard refresh schedule: %w", err)
	}
	sched := scheduler.New(scheduler.Config{
		Logger:        log,
		Location:      cfg.App.Zone.Location(),
		MaxConcurrent: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:    cfg.Scheduler.JobTimeout,
	})
	refresh := jobs.NewRefreshLeaderboardJob(board, bus, log)
	if err := sched.Register(refresh, schedule); err != nil {
		return err
	}

	// Build a snapshot before the first tick so readers never wait a full period.
	if _, err := sched.RunNow(ctx, refresh.Name()); err != nil {
		log.Warn("initial leaderboard refresh failed", logger.Err(err))
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	log.Info("worker started",
		logger.String("schedule", schedule.String()),
		logger.String("timezone", cfg.App.Zone.String()),
	)

	<-ctx.Done()
	log.Info("received shutdown signal")

	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler", logger.Err(err))
		return err
	}
	log.Info("shutdown completed")
	return nil
}
