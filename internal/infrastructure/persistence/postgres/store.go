package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the PostgreSQL stats.Store.
type Store struct {
	conn   *Connection
	limits stats.Limits
	now    func() time.Time
}

var _ stats.Store = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock replaces time.Now for updated_at stamps.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store enforcing limits on every delta.
func NewStore(conn *Connection, limits stats.Limits, opts ...StoreOption) *Store {
	s := &Store{conn: conn, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const statsColumns = `user_id, total_xp, current_level, current_streak, longest_streak,
	gems_balance, streak_shield_count, total_sessions, total_minutes, badges_earned,
	last_practice_date, version, updated_at`

func scanStats(row pgx.Row) (stats.UserStats, error) {
	var s stats.UserStats
	var last *time.Time
	err := row.Scan(
		&s.UserID, &s.TotalXP, &s.CurrentLevel, &s.CurrentStreak, &s.LongestStreak,
		&s.GemsBalance, &s.StreakShieldCount, &s.TotalSessions, &s.TotalMinutes, &s.BadgesEarned,
		&last, &s.Version, &s.UpdatedAt,
	)
	if err != nil {
		return stats.UserStats{}, err
	}
	if last != nil {
		d := timeutil.DateOf(*last)
		s.LastPracticeDate = &d
	}
	return s, nil
}

// Get implements stats.Store. Unknown users get the zeroed record without a
// row being written.
func (s *Store) Get(ctx context.Context, userID string) (stats.UserStats, error) {
	row := s.conn.Pool().QueryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID)
	st, err := scanStats(row)
	if IsNoRows(err) {
		return stats.New(userID), nil
	}
	if err != nil {
		return stats.UserStats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return st, nil
}

// Begin implements stats.Store.
func (s *Store) Begin(ctx context.Context) (stats.UnitOfWork, error) {
	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &unitOfWork{store: s, tx: tx, locked: make(map[string]stats.UserStats)}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

type unitOfWork struct {
	store *Store
	tx    pgx.Tx
	// locked holds the stats of every user this unit row-locked
	locked map[string]stats.UserStats
	done   bool
}

var _ stats.UnitOfWork = (*unitOfWork)(nil)

var errFinished = errors.New("unit of work already finished")

// Lock creates the row if absent and takes its row lock.
func (u *unitOfWork) Lock(ctx context.Context, userID string) (stats.UserStats, error) {
	if u.done {
		return stats.UserStats{}, errFinished
	}
	if st, ok := u.locked[userID]; ok {
		return st.Clone(), nil
	}

	_, err := u.tx.Exec(ctx,
		`INSERT INTO user_stats (user_id, updated_at) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, u.store.now())
	if err != nil {
		return stats.UserStats{}, conflictOr(err, "failed to create stats row")
	}

	st, err := scanStats(u.tx.QueryRow(ctx,
		`SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return stats.UserStats{}, conflictOr(err, "failed to lock user")
	}
	u.locked[userID] = st
	return st.Clone(), nil
}

func (u *unitOfWork) ApplyDelta(ctx context.Context, userID string, delta stats.Delta) (stats.UserStats, error) {
	current, err := u.require(userID)
	if err != nil {
		return stats.UserStats{}, err
	}
	next, err := stats.Apply(current, delta, u.store.limits, u.store.now())
	if err != nil {
		return stats.UserStats{}, err
	}

	var last *time.Time
	if next.LastPracticeDate != nil {
		t := next.LastPracticeDate.Time()
		last = &t
	}
	tag, err := u.tx.Exec(ctx, `
		UPDATE user_stats SET
			total_xp = $2, current_level = $3, current_streak = $4, longest_streak = $5,
			gems_balance = $6, streak_shield_count = $7, total_sessions = $8,
			total_minutes = $9, badges_earned = $10, last_practice_date = $11,
			version = $12, updated_at = $13
		WHERE user_id = $1 AND version = $14`,
		userID, next.TotalXP, next.CurrentLevel, next.CurrentStreak, next.LongestStreak,
		next.GemsBalance, next.StreakShieldCount, next.TotalSessions,
		next.TotalMinutes, next.BadgesEarned, last,
		next.Version, next.UpdatedAt, current.Version,
	)
	if err != nil {
		return stats.UserStats{}, conflictOr(err, "failed to update stats")
	}
	if tag.RowsAffected() == 0 {
		return stats.UserStats{}, shared.NewDomainError("stats", "ApplyDelta", shared.ErrConcurrentModification,
			fmt.Sprintf("stats of %s changed since version %d", userID, current.Version))
	}

	u.locked[userID] = next
	return next.Clone(), nil
}

func (u *unitOfWork) Sessions() practice.Repository     { return sessionRepo{u} }
func (u *unitOfWork) Badges() badge.Repository          { return badgeRepo{u} }
func (u *unitOfWork) Curriculum() curriculum.Repository { return curriculumRepo{u} }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errFinished
	}
	u.done = true
	if err := u.tx.Commit(ctx); err != nil {
		return conflictOr(err, "failed to commit")
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	return nil
}

// require returns the stats of a user this unit locked.
func (u *unitOfWork) require(userID string) (stats.UserStats, error) {
	if u.done {
		return stats.UserStats{}, errFinished
	}
	st, ok := u.locked[userID]
	if !ok {
		return stats.UserStats{}, fmt.Errorf("%w: %s", stats.ErrNotLocked, userID)
	}
	return st, nil
}

// conflictOr maps write conflicts to shared.ErrConcurrentModification and
// wraps anything else with msg.
func conflictOr(err error, msg string) error {
	if IsWriteConflict(err) {
		return shared.WrapError("stats", "postgres", shared.ErrConcurrentModification, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
