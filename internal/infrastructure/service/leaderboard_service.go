package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/circuitbreaker"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// FeatureGate answers feature flag checks.
type FeatureGate interface {
	Enabled(feature, userID string) bool
}

// featureLeaderboardCache matches config.FeatureLeaderboardCache.
const featureLeaderboardCache = "leaderboard_cache"

// LeaderboardService provides cache-first leaderboard reads and rebuilds.
//
// Reads go to the cache behind a circuit breaker. A cache miss rebuilds the
// snapshot synchronously; concurrent misses share one rebuild. When the cache
// is failing or switched off, reads rank the source data directly.
type LeaderboardService struct {
	repo     leaderboard.Repository
	cache    leaderboard.Cache
	breaker  *circuitbreaker.CircuitBreaker
	group    singleflight.Group
	features FeatureGate
	log      *logger.Logger
	now      func() time.Time
}

// LeaderboardOption customizes a LeaderboardService.
type LeaderboardOption func(*LeaderboardService)

// WithFeatures sets the feature gate consulted for leaderboard_cache.
func WithFeatures(f FeatureGate) LeaderboardOption {
	return func(s *LeaderboardService) { s.features = f }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) LeaderboardOption {
	return func(s *LeaderboardService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) LeaderboardOption {
	return func(s *LeaderboardService) { s.now = now }
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(repo leaderboard.Repository, cache leaderboard.Cache, opts ...LeaderboardOption) *LeaderboardService {
	s := &LeaderboardService{
		repo:  repo,
		cache: cache,
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("leaderboard"))
	s.breaker = circuitbreaker.CacheBreaker("leaderboard-cache",
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, leaderboard.ErrCacheMiss)
		}),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			s.log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)
	return s
}

func (s *LeaderboardService) cacheEnabled() bool {
	if s.cache == nil {
		return false
	}
	return s.features == nil || s.features.Enabled(featureLeaderboardCache, "")
}

// ─────────────────────────────────────────────────────────────────────────────
// Rebuild
// ─────────────────────────────────────────────────────────────────────────────

// build ranks the current source data without touching the cache.
func (s *LeaderboardService) build(ctx context.Context) (*leaderboard.Snapshot, error) {
	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard entries: %w", err)
	}
	return leaderboard.NewSnapshot(uuid.NewString(), entries, s.now()), nil
}

// Refresh rebuilds the snapshot and stores it in the cache. Concurrent calls
// share one rebuild.
func (s *LeaderboardService) Refresh(ctx context.Context) (*leaderboard.Snapshot, error) {
	v, err, dup := s.group.Do("rebuild", func() (any, error) {
		start := time.Now()
		snap, err := s.build(ctx)
		if err != nil {
			return nil, err
		}
		if s.cacheEnabled() {
			storeErr := s.breaker.Execute(ctx, func(ctx context.Context) error {
				return s.cache.Store(ctx, snap)
			})
			if storeErr != nil {
				s.log.Warn("failed to store leaderboard snapshot", logger.Err(storeErr))
			}
		}
		s.log.Debug("leaderboard rebuilt",
			logger.String("snapshot_id", snap.ID),
			logger.Int("entries", snap.Count()),
			logger.Latency(time.Since(start)),
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	if dup {
		s.log.Debug("leaderboard rebuild shared")
	}
	return v.(*leaderboard.Snapshot), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// snapshotFor resolves a cache failure: a miss rebuilds and stores, any
// other error ranks the source directly.
func (s *LeaderboardService) snapshotFor(ctx context.Context, cacheErr error) (*leaderboard.Snapshot, error) {
	if errors.Is(cacheErr, leaderboard.ErrCacheMiss) {
		return s.Refresh(ctx)
	}
	if cacheErr != nil {
		s.log.Warn("leaderboard cache unavailable, reading source", logger.Err(cacheErr))
	}
	v, err, _ := s.group.Do("direct", func() (any, error) {
		return s.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*leaderboard.Snapshot), nil
}

// Page returns one page of the leaderboard.
func (s *LeaderboardService) Page(ctx context.Context, q leaderboard.Query) (leaderboard.Page, error) {
	q = q.Normalize()

	var err error
	if s.cacheEnabled() {
		var page leaderboard.Page
		err = s.breaker.Execute(ctx, func(ctx context.Context) error {
			var cacheErr error
			page, cacheErr = s.cache.Page(ctx, q)
			return cacheErr
		})
		if err == nil {
			return page, nil
		}
	}

	snap, buildErr := s.snapshotFor(ctx, err)
	if buildErr != nil {
		return leaderboard.Page{}, buildErr
	}
	return snap.Page(q)
}

// Position returns the 1-based rank of userID under o. Users that are not on
// the leaderboard yield shared.ErrUserNotFound.
func (s *LeaderboardService) Position(ctx context.Context, userID string, o leaderboard.Ordering) (leaderboard.Rank, error) {
	var (
		rank   leaderboard.Rank
		found  bool
		err    error
		cached = s.cacheEnabled()
	)
	if cached {
		err = s.breaker.Execute(ctx, func(ctx context.Context) error {
			var cacheErr error
			rank, found, cacheErr = s.cache.Position(ctx, userID, o)
			return cacheErr
		})
	}

	if !cached || err != nil {
		snap, buildErr := s.snapshotFor(ctx, err)
		if buildErr != nil {
			return 0, buildErr
		}
		rank, found, err = snap.Position(userID, o)
		if err != nil {
			return 0, err
		}
	}

	if !found {
		return 0, shared.NewDomainError("leaderboard", "Position", shared.ErrUserNotFound,
			fmt.Sprintf("user %s is not on the leaderboard", userID))
	}
	return rank, nil
}

// Meta returns the cached snapshot's metadata.
func (s *LeaderboardService) Meta(ctx context.Context) (leaderboard.SnapshotMeta, error) {
	if !s.cacheEnabled() {
		return leaderboard.SnapshotMeta{}, leaderboard.ErrCacheMiss
	}
	var meta leaderboard.SnapshotMeta
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var cacheErr error
		meta, cacheErr = s.cache.Meta(ctx)
		return cacheErr
	})
	return meta, err
}

// BreakerState reports the cache circuit breaker state for health checks.
func (s *LeaderboardService) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}
