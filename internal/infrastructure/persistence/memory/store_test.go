package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return NewStore(stats.Limits{ShieldCap: 3}, WithClock(func() time.Time { return t0 }))
}

func session(t *testing.T, userID string, at time.Time) *practice.Session {
	t.Helper()
	s, err := practice.NewSession(userID, "scales", 10, 3, false, "", at, practice.DefaultLimits())
	require.NoError(t, err)
	return s
}

func TestStore_GetReturnsZeroedRecordWithoutCreating(t *testing.T) {
	s := newTestStore()

	got, err := s.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, stats.New("u1"), got)
	assert.Equal(t, 0, s.Users())
}

func TestStore_CommitMakesWritesVisible(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = uow.Lock(ctx, "u1")
	require.NoError(t, err)
	next, err := uow.ApplyDelta(ctx, "u1", stats.Delta{AddXP: 40, AddGems: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.Version)
	assert.Equal(t, t0, next.UpdatedAt)

	before, _ := s.Get(ctx, "u1")
	assert.Zero(t, before.TotalXP)

	require.NoError(t, uow.Commit(ctx))
	after, _ := s.Get(ctx, "u1")
	assert.Equal(t, 40, after.TotalXP)
	assert.Equal(t, 5, after.GemsBalance)
	assert.Equal(t, 1, s.Users())

	assert.Error(t, uow.Commit(ctx))
}

func TestStore_RollbackDiscards(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = uow.Lock(ctx, "u1")
	require.NoError(t, err)
	_, err = uow.ApplyDelta(ctx, "u1", stats.Delta{AddXP: 40})
	require.NoError(t, err)
	require.NoError(t, uow.Sessions().Create(ctx, session(t, "u1", t0)))
	require.NoError(t, uow.Rollback(ctx))
	require.NoError(t, uow.Rollback(ctx))

	got, _ := s.Get(ctx, "u1")
	assert.Zero(t, got.TotalXP)
	assert.Equal(t, 0, s.Users())

	// the lock was released
	_, err = stats.ApplyDelta(ctx, s, "u1", stats.Delta{AddXP: 1})
	require.NoError(t, err)
}

func TestStore_InvalidDeltaLeavesStatsUnchanged(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := stats.ApplyDelta(ctx, s, "u1", stats.Delta{AddShields: 4})
	assert.True(t, shared.IsValidation(err))

	_, err = stats.ApplyDelta(ctx, s, "u1", stats.Delta{AddGems: -1})
	assert.True(t, shared.IsValidation(err))

	got, _ := s.Get(ctx, "u1")
	assert.Equal(t, stats.New("u1"), got)
}

func TestStore_WritesRequireLock(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = uow.Rollback(ctx) }()

	_, err = uow.ApplyDelta(ctx, "u1", stats.Delta{AddXP: 1})
	assert.ErrorIs(t, err, stats.ErrNotLocked)
	assert.ErrorIs(t, uow.Sessions().Create(ctx, session(t, "u1", t0)), stats.ErrNotLocked)
	assert.ErrorIs(t, uow.Badges().Award(ctx, badge.UserBadge{UserID: "u1", BadgeKey: "x", EarnedAt: t0}), stats.ErrNotLocked)
}

func TestStore_LockSerializesUsers(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = first.Lock(ctx, "u1")
	require.NoError(t, err)

	// another user is not blocked
	_, err = stats.ApplyDelta(ctx, s, "u2", stats.Delta{AddXP: 1})
	require.NoError(t, err)

	second, err := s.Begin(ctx)
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = second.Lock(waitCtx, "u1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, first.Rollback(ctx))
	_, err = second.Lock(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, second.Rollback(ctx))
}

func TestSessions_ListAndHistory(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	var ids []string
	err := stats.WithUnitOfWork(ctx, s, func(uow stats.UnitOfWork) error {
		if _, err := uow.Lock(ctx, "u1"); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			sess := session(t, "u1", t0.Add(time.Duration(i)*time.Hour))
			ids = append(ids, sess.ID)
			if err := uow.Sessions().Create(ctx, sess); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = uow.Rollback(ctx) }()

	all, err := uow.Sessions().ListByUser(ctx, "u1", practice.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	page, err := uow.Sessions().ListByUser(ctx, "u1", practice.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	empty, err := uow.Sessions().ListByUser(ctx, "u1", practice.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	got, err := uow.Sessions().Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	_, err = uow.Sessions().Get(ctx, "nope")
	assert.True(t, shared.IsNotFound(err))
}

func TestBadges_AwardOnce(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	err := stats.WithUnitOfWork(ctx, s, func(uow stats.UnitOfWork) error {
		if _, err := uow.Lock(ctx, "u1"); err != nil {
			return err
		}
		if err := uow.Badges().Award(ctx, badge.UserBadge{UserID: "u1", BadgeKey: "b", EarnedAt: t0.Add(time.Hour)}); err != nil {
			return err
		}
		if err := uow.Badges().Award(ctx, badge.UserBadge{UserID: "u1", BadgeKey: "a", EarnedAt: t0}); err != nil {
			return err
		}
		err := uow.Badges().Award(ctx, badge.UserBadge{UserID: "u1", BadgeKey: "a", EarnedAt: t0})
		assert.True(t, shared.IsAlreadyExists(err))
		return nil
	})
	require.NoError(t, err)

	uow, _ := s.Begin(ctx)
	defer func() { _ = uow.Rollback(ctx) }()
	list, err := uow.Badges().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].BadgeKey)
	assert.Equal(t, "b", list[1].BadgeKey)
}

func TestCurriculum_SlotsPositionAndSubmissions(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	c := curriculum.SlotRef{FocusID: 1, Key: curriculum.KeyC}
	f := curriculum.SlotRef{FocusID: 1, Key: curriculum.KeyF}

	var first, second *curriculum.Submission
	err := stats.WithUnitOfWork(ctx, s, func(uow stats.UnitOfWork) error {
		if _, err := uow.Lock(ctx, "u1"); err != nil {
			return err
		}
		repo := uow.Curriculum()
		require.NoError(t, repo.CompleteSlot(ctx, "u1", c, t0))
		require.NoError(t, repo.CompleteSlot(ctx, "u1", f, t0))
		assert.ErrorIs(t, repo.CompleteSlot(ctx, "u1", c, t0), shared.ErrStepAlreadyComplete)
		require.NoError(t, repo.ClearSlots(ctx, "u1", []curriculum.SlotRef{f}))
		require.NoError(t, repo.SetPosition(ctx, "u1", &f))

		var err error
		first, err = curriculum.NewSubmission("u1", 1, "https://youtu.be/a", t0)
		require.NoError(t, err)
		second, err = curriculum.NewSubmission("u1", 1, "https://youtu.be/b", t0)
		require.NoError(t, err)
		require.NoError(t, repo.CreateSubmission(ctx, first))
		return repo.CreateSubmission(ctx, second)
	})
	require.NoError(t, err)

	uow, _ := s.Begin(ctx)
	defer func() { _ = uow.Rollback(ctx) }()
	repo := uow.Curriculum()

	p, err := repo.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.IsComplete(c))
	assert.False(t, p.IsComplete(f))
	require.NotNil(t, p.Position)
	assert.Equal(t, f, *p.Position)

	latest, err := repo.LatestSubmission(ctx, "u1", 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	none, err := repo.LatestSubmission(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Nil(t, none)

	got, err := repo.Submission(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/a", got.YouTubeURL)
}

func TestLeaderboardRepository_VisibleUsersOnly(t *testing.T) {
	s := newTestStore()
	repo := NewLeaderboardRepository(s)
	ctx := context.Background()

	_, err := stats.ApplyDelta(ctx, s, "u1", stats.Delta{AddXP: 50})
	require.NoError(t, err)
	_, err = stats.ApplyDelta(ctx, s, "u2", stats.Delta{AddXP: 80})
	require.NoError(t, err)

	require.NoError(t, repo.SetVisibility(ctx, "u1", true, t0))
	require.NoError(t, repo.SetVisibility(ctx, "u3", true, t0))

	entries, err := repo.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]int{}
	for _, e := range entries {
		byID[e.UserID] = e.TotalXP
	}
	assert.Equal(t, map[string]int{"u1": 50, "u3": 0}, byID)

	require.NoError(t, repo.SetVisibility(ctx, "u1", false, t0))
	visible, err := repo.IsVisible(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, visible)
}
