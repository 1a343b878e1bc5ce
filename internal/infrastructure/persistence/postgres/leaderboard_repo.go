package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository reads ranking entries for opted-in users and stores
// the opt-in flag.
type LeaderboardRepository struct {
	conn *Connection
}

var _ leaderboard.Repository = (*LeaderboardRepository)(nil)

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// Entries returns committed stats of every opted-in user. Users who opted in
// before their first write rank with the zeroed record.
func (r *LeaderboardRepository) Entries(ctx context.Context) ([]leaderboard.Entry, error) {
	rows, err := r.conn.Pool().Query(ctx, `
		SELECT
			v.user_id,
			COALESCE(s.total_xp, 0),
			COALESCE(s.current_level, 1),
			COALESCE(s.current_streak, 0),
			COALESCE(s.badges_earned, 0),
			(SELECT MIN(b.earned_at) FROM user_badges b WHERE b.user_id = v.user_id),
			COALESCE(s.updated_at, v.opted_in_at)
		FROM leaderboard_visibility v
		LEFT JOIN user_stats s ON s.user_id = v.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leaderboard.Entry, error) {
		var e leaderboard.Entry
		err := row.Scan(&e.UserID, &e.TotalXP, &e.CurrentLevel, &e.CurrentStreak,
			&e.BadgesEarned, &e.FirstBadgeAt, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard entries: %w", err)
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	return entries, nil
}

// SetVisibility opts a user in or out. Opting in twice keeps the first time.
func (r *LeaderboardRepository) SetVisibility(ctx context.Context, userID string, visible bool, at time.Time) error {
	var err error
	if visible {
		_, err = r.conn.Pool().Exec(ctx, `
			INSERT INTO leaderboard_visibility (user_id, opted_in_at) VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING`, userID, at)
	} else {
		_, err = r.conn.Pool().Exec(ctx, `DELETE FROM leaderboard_visibility WHERE user_id = $1`, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to set leaderboard visibility: %w", err)
	}
	return nil
}

// IsVisible reports whether a user opted in.
func (r *LeaderboardRepository) IsVisible(ctx context.Context, userID string) (bool, error) {
	var visible bool
	err := r.conn.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM leaderboard_visibility WHERE user_id = $1)`, userID).Scan(&visible)
	if err != nil {
		return false, fmt.Errorf("failed to read leaderboard visibility: %w", err)
	}
	return visible, nil
}
