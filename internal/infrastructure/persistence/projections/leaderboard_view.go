// Package projections implements read models for the CQRS pattern.
// Projections are denormalized views optimized for fast reads and rebuilt
// from the write side, never written to directly by commands.
package projections

import (
	"context"
	"sync"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD VIEW - In-process Read Model
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardView is the in-process leaderboard cache used when Redis is not
// configured. It holds the latest snapshot; Store swaps it wholesale so
// readers never see a half-built ranking.
type LeaderboardView struct {
	mu       sync.RWMutex
	snapshot *leaderboard.Snapshot

	// version is incremented on each store.
	version int64
}

var _ leaderboard.Cache = (*LeaderboardView)(nil)

// NewLeaderboardView creates an empty view. Reads miss until the first Store.
func NewLeaderboardView() *LeaderboardView {
	return &LeaderboardView{}
}

// Store replaces the snapshot.
func (v *LeaderboardView) Store(_ context.Context, s *leaderboard.Snapshot) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshot = s
	v.version++
	return nil
}

func (v *LeaderboardView) current() (*leaderboard.Snapshot, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.snapshot == nil {
		return nil, leaderboard.ErrCacheMiss
	}
	return v.snapshot, nil
}

// Page returns one page of the latest snapshot.
func (v *LeaderboardView) Page(_ context.Context, q leaderboard.Query) (leaderboard.Page, error) {
	s, err := v.current()
	if err != nil {
		return leaderboard.Page{}, err
	}
	return s.Page(q)
}

// Position returns a user's rank in the latest snapshot.
func (v *LeaderboardView) Position(_ context.Context, userID string, o leaderboard.Ordering) (leaderboard.Rank, bool, error) {
	s, err := v.current()
	if err != nil {
		return 0, false, err
	}
	return s.Position(userID, o)
}

// Meta returns the latest snapshot's metadata.
func (v *LeaderboardView) Meta(_ context.Context) (leaderboard.SnapshotMeta, error) {
	s, err := v.current()
	if err != nil {
		return leaderboard.SnapshotMeta{}, err
	}
	return s.Meta(), nil
}

// Version returns how many snapshots have been stored.
func (v *LeaderboardView) Version() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// LastUpdated returns when the current snapshot was built.
func (v *LeaderboardView) LastUpdated() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.snapshot == nil {
		return time.Time{}
	}
	return v.snapshot.BuiltAt
}
