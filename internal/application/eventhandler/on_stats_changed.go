// Package eventhandler contains domain event handlers. They react to
// committed changes and run side effects such as refreshing caches; they never
// change per-user state themselves.
package eventhandler

import (
	"context"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STATS CHANGED HANDLER
// Requests a leaderboard rebuild after any event that can move a ranking.
// Requests are coalesced: while one rebuild is pending, further requests are
// dropped, so a burst of writes costs one rebuild. Publishing never blocks.
// ═══════════════════════════════════════════════════════════════════════════

// Refresher rebuilds the leaderboard snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*leaderboard.Snapshot, error)
}

// StatsChangedConfig configures the handler.
type StatsChangedConfig struct {
	// MinInterval is the minimum pause between two rebuilds.
	MinInterval time.Duration

	// RefreshTimeout bounds one rebuild.
	RefreshTimeout time.Duration
}

// DefaultStatsChangedConfig returns the default configuration.
func DefaultStatsChangedConfig() StatsChangedConfig {
	return StatsChangedConfig{
		MinInterval:    time.Second,
		RefreshTimeout: 30 * time.Second,
	}
}

// OnStatsChangedHandler turns ranking-relevant events into refresh requests.
type OnStatsChangedHandler struct {
	refresher Refresher
	pending   chan struct{}
	log       *logger.Logger
	config    StatsChangedConfig
}

// NewOnStatsChangedHandler creates a new handler.
func NewOnStatsChangedHandler(refresher Refresher, log *logger.Logger, config StatsChangedConfig) *OnStatsChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.RefreshTimeout <= 0 {
		config = DefaultStatsChangedConfig()
	}
	return &OnStatsChangedHandler{
		refresher: refresher,
		pending:   make(chan struct{}, 1),
		log:       log.With(logger.Component("on_stats_changed")),
		config:    config,
	}
}

// RankingEvents lists the events that can change a leaderboard row.
func RankingEvents() []shared.EventType {
	return []shared.EventType{
		shared.EventXPGained,
		shared.EventLevelUp,
		shared.EventStreakUpdated,
		shared.EventBadgeEarned,
		shared.EventLeaderboardVisibility,
	}
}

// Subscribe registers the handler for every ranking event.
func (h *OnStatsChangedHandler) Subscribe(sub shared.EventSubscriber) error {
	for _, t := range RankingEvents() {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *OnStatsChangedHandler) Handle(event shared.Event) error {
	if h.Request() {
		h.log.Debug("leaderboard refresh requested",
			logger.String("event_type", string(event.EventType())),
			logger.UserID(event.AggregateID()),
		)
	}
	return nil
}

// Request asks for a rebuild. It reports false when one is already pending.
func (h *OnStatsChangedHandler) Request() bool {
	select {
	case h.pending <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run serves refresh requests until ctx is done.
func (h *OnStatsChangedHandler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.pending:
		}

		h.refresh(ctx)

		if h.config.MinInterval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.config.MinInterval):
			}
		}
	}
}

func (h *OnStatsChangedHandler) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.config.RefreshTimeout)
	defer cancel()

	start := time.Now()
	snap, err := h.refresher.Refresh(ctx)
	if err != nil {
		h.log.Warn("leaderboard refresh failed", logger.Err(err))
		return
	}
	h.log.Debug("leaderboard refreshed",
		logger.Int("entries", snap.Count()),
		logger.Latency(time.Since(start)),
	)
}
