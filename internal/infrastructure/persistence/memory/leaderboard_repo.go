package memory

import (
	"context"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
)

// LeaderboardRepository reads leaderboard entries from a Store.
type LeaderboardRepository struct {
	store *Store
}

var _ leaderboard.Repository = (*LeaderboardRepository)(nil)

// NewLeaderboardRepository creates a repository over store.
func NewLeaderboardRepository(store *Store) *LeaderboardRepository {
	return &LeaderboardRepository{store: store}
}

// Entries returns the committed stats of every opted-in user.
func (r *LeaderboardRepository) Entries(_ context.Context) ([]leaderboard.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := make([]leaderboard.Entry, 0, len(r.store.visible))
	for userID := range r.store.visible {
		d, ok := r.store.users[userID]
		if !ok {
			d = newUserData(userID)
		}
		entries = append(entries, entryOf(d.stats, d.badges))
	}
	return entries, nil
}

func entryOf(s stats.UserStats, badges map[string]time.Time) leaderboard.Entry {
	e := leaderboard.Entry{
		UserID:        s.UserID,
		TotalXP:       s.TotalXP,
		CurrentLevel:  s.CurrentLevel,
		CurrentStreak: s.CurrentStreak,
		BadgesEarned:  s.BadgesEarned,
		UpdatedAt:     s.UpdatedAt,
	}
	for _, at := range badges {
		if e.FirstBadgeAt == nil || at.Before(*e.FirstBadgeAt) {
			t := at
			e.FirstBadgeAt = &t
		}
	}
	return e
}

// SetVisibility opts a user in or out.
func (r *LeaderboardRepository) SetVisibility(_ context.Context, userID string, visible bool, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if visible {
		if _, ok := r.store.visible[userID]; !ok {
			r.store.visible[userID] = at
		}
		return nil
	}
	delete(r.store.visible, userID)
	return nil
}

// IsVisible reports whether a user opted in.
func (r *LeaderboardRepository) IsVisible(_ context.Context, userID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.visible[userID]
	return ok, nil
}
