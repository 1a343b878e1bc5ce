// Package jobs contains the scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// Refresher rebuilds and stores the leaderboard snapshot.
// service.LeaderboardService implements it.
type Refresher interface {
	Refresh(ctx context.Context) (*leaderboard.Snapshot, error)
}

// RefreshLeaderboardJob rebuilds the leaderboard snapshot on a schedule. The
// interval bounds how far leaderboard reads lag behind committed stats.
type RefreshLeaderboardJob struct {
	refresher Refresher
	publisher shared.EventPublisher
	log       *logger.Logger

	last atomic.Pointer[RefreshStats]
}

// RefreshStats describes the last successful run.
type RefreshStats struct {
	SnapshotID string
	Entries    int
	BuiltAt    time.Time
	Duration   time.Duration
}

// NewRefreshLeaderboardJob creates the job. publisher may be nil.
func NewRefreshLeaderboardJob(refresher Refresher, publisher shared.EventPublisher, log *logger.Logger) *RefreshLeaderboardJob {
	if log == nil {
		log = logger.Default()
	}
	return &RefreshLeaderboardJob{
		refresher: refresher,
		publisher: publisher,
		log:       log.With(logger.Component("refresh_leaderboard")),
	}
}

func (j *RefreshLeaderboardJob) Name() string { return "refresh_leaderboard" }

func (j *RefreshLeaderboardJob) Description() string {
	return "Rebuilds the leaderboard snapshot from committed stats"
}

// Run rebuilds the snapshot and announces it with a leaderboard.refreshed
// event.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	start := time.Now()
	snap, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh leaderboard: %w", err)
	}

	st := &RefreshStats{
		SnapshotID: snap.ID,
		Entries:    snap.Count(),
		BuiltAt:    snap.BuiltAt,
		Duration:   time.Since(start),
	}
	j.last.Store(st)

	if j.publisher != nil {
		event := shared.NewEvent(shared.EventLeaderboardRefreshed, "leaderboard", snap.BuiltAt, map[string]any{
			"snapshot_id": snap.ID,
			"entries":     snap.Count(),
		})
		if err := j.publisher.Publish(event); err != nil {
			j.log.Warn("failed to publish leaderboard.refreshed", logger.Err(err))
		}
	}

	j.log.Debug("leaderboard refreshed",
		logger.String("snapshot_id", st.SnapshotID),
		logger.Int("entries", st.Entries),
		logger.Latency(st.Duration),
	)
	return nil
}

// LastRun returns the stats of the last successful run, or nil.
func (j *RefreshLeaderboardJob) LastRun() *RefreshStats {
	return j.last.Load()
}
