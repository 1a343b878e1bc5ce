package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/progression"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/internal/infrastructure/persistence/memory"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type snapshotReader struct{ snap *leaderboard.Snapshot }

func (r snapshotReader) Page(_ context.Context, q leaderboard.Query) (leaderboard.Page, error) {
	return r.snap.Page(q)
}

func (r snapshotReader) Position(_ context.Context, userID string, o leaderboard.Ordering) (leaderboard.Rank, error) {
	rank, ok, err := r.snap.Position(userID, o)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, shared.NewDomainError("leaderboard", "Position", shared.ErrUserNotFound, userID)
	}
	return rank, nil
}

func reader() snapshotReader {
	return snapshotReader{snap: leaderboard.NewSnapshot("s1", []leaderboard.Entry{
		{UserID: "a", TotalXP: 10, BadgesEarned: 3},
		{UserID: "b", TotalXP: 30, BadgesEarned: 1},
		{UserID: "c", TotalXP: 20, BadgesEarned: 2},
	}, now)}
}

func TestGetLeaderboard_Pagination(t *testing.T) {
	h := NewGetLeaderboardHandler(reader())

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "b", res.Rows[0].UserID)
	assert.Equal(t, "c", res.Rows[1].UserID)
	assert.Equal(t, Pagination{Limit: 2, Offset: 0, Total: 3, HasMore: true}, res.Pagination)
	assert.Equal(t, "total_xp", res.SortBy)
	assert.Equal(t, "desc", res.SortOrder)
	assert.Equal(t, now, res.BuiltAt)

	res, err = h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.False(t, res.Pagination.HasMore)

	res, err = h.Handle(context.Background(), GetLeaderboardQuery{Offset: 10})
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestGetLeaderboard_SortAndValidation(t *testing.T) {
	h := NewGetLeaderboardHandler(reader())

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{SortBy: "badges_earned", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Rows[0].UserID)

	for _, q := range []GetLeaderboardQuery{
		{Limit: -1},
		{Offset: -1},
		{SortBy: "gems"},
		{SortOrder: "sideways"},
	} {
		_, err := h.Handle(context.Background(), q)
		assert.True(t, shared.IsValidation(err), "%+v", q)
	}
}

func TestGetLeaderboardPosition(t *testing.T) {
	h := NewGetLeaderboardPositionHandler(reader())

	res, err := h.Handle(context.Background(), GetLeaderboardPositionQuery{UserID: "a", SortBy: "badges_earned"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Position)

	_, err = h.Handle(context.Background(), GetLeaderboardPositionQuery{UserID: "zed"})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	_, err = h.Handle(context.Background(), GetLeaderboardPositionQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestGetUserStats(t *testing.T) {
	store := memory.NewStore(stats.Limits{ShieldCap: 3})
	ctx := context.Background()
	catalog, err := badge.NewCatalog([]badge.Badge{
		{Key: "first_session", Name: "First Note", Category: "practice", Criteria: badge.PracticeSessions{Min: 1}},
	})
	require.NoError(t, err)

	err = stats.WithUnitOfWork(ctx, store, func(uow stats.UnitOfWork) error {
		if _, err := uow.Lock(ctx, "u1"); err != nil {
			return err
		}
		if _, err := uow.ApplyDelta(ctx, "u1", stats.Delta{AddXP: 150, AddBadges: 1}); err != nil {
			return err
		}
		return uow.Badges().Award(ctx, badge.UserBadge{UserID: "u1", BadgeKey: "first_session", EarnedAt: now})
	})
	require.NoError(t, err)

	h := NewGetUserStatsHandler(store, progression.DefaultLevelTable(), catalog)
	res, err := h.Handle(ctx, GetUserStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 150, res.Stats.TotalXP)
	require.Len(t, res.Badges, 1)
	assert.Equal(t, "First Note", res.Badges[0].Name)
	assert.Equal(t, "practice", res.Badges[0].Category)

	fresh, err := h.Handle(ctx, GetUserStatsQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Stats.CurrentLevel)
	assert.NotNil(t, fresh.Badges)
	assert.Empty(t, fresh.Badges)

	_, err = h.Handle(ctx, GetUserStatsQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestListSessions(t *testing.T) {
	store := memory.NewStore(stats.Limits{ShieldCap: 3})
	ctx := context.Background()

	err := stats.WithUnitOfWork(ctx, store, func(uow stats.UnitOfWork) error {
		if _, err := uow.Lock(ctx, "u1"); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			s, err := practice.NewSession("u1", "scales", 10+i, 3, false, "", now.Add(time.Duration(i)*time.Minute), practice.DefaultLimits())
			if err != nil {
				return err
			}
			if err := uow.Sessions().Create(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	h := NewListSessionsHandler(store)
	res, err := h.Handle(ctx, ListSessionsQuery{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)
	assert.Equal(t, 12, res.Sessions[0].DurationMinutes)

	empty, err := h.Handle(ctx, ListSessionsQuery{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, 20, empty.Limit)
	assert.NotNil(t, empty.Sessions)

	_, err = h.Handle(ctx, ListSessionsQuery{UserID: "u1", Offset: -1})
	assert.True(t, shared.IsValidation(err))
}

func TestGetCurrentAssignment(t *testing.T) {
	store := memory.NewStore(stats.Limits{ShieldCap: 3})
	catalog, err := curriculum.NewCatalog([]curriculum.Focus{
		{ID: 1, FocusOrder: 1, Title: "Major Scales"},
		{ID: 2, FocusOrder: 2, Title: "Major Arpeggios"},
	})
	require.NoError(t, err)
	h := NewGetCurrentAssignmentHandler(store, curriculum.NewMachine(catalog))
	ctx := context.Background()

	res, err := h.Handle(ctx, GetCurrentAssignmentQuery{UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, res.Assignment)
	assert.False(t, res.Complete)
	assert.Equal(t, 1, res.Assignment.Focus.ID)
	assert.Equal(t, "C", res.Assignment.KeyName)
	assert.Equal(t, curriculum.StepID(101), res.Assignment.StepID)

	two := 2
	res, err = h.Handle(ctx, GetCurrentAssignmentQuery{UserID: "u1", FocusID: &two})
	require.NoError(t, err)
	assert.Equal(t, curriculum.StepID(201), res.Assignment.StepID)

	missing := 9
	_, err = h.Handle(ctx, GetCurrentAssignmentQuery{UserID: "u1", FocusID: &missing})
	assert.True(t, shared.IsNotFound(err))
}
