package command

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

// conflictingStore fails the first n commits with a write conflict.
type conflictingStore struct {
	stats.Store
	failures atomic.Int32
	begins   atomic.Int32
}

func (s *conflictingStore) Begin(ctx context.Context) (stats.UnitOfWork, error) {
	s.begins.Add(1)
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &conflictingUoW{UnitOfWork: uow, store: s}, nil
}

type conflictingUoW struct {
	stats.UnitOfWork
	store *conflictingStore
}

func (u *conflictingUoW) Commit(ctx context.Context) error {
	if u.store.failures.Add(-1) >= 0 {
		_ = u.UnitOfWork.Rollback(ctx)
		return shared.NewDomainError("stats", "Commit", shared.ErrConcurrentModification, "version changed")
	}
	return u.UnitOfWork.Commit(ctx)
}

func newConflictFixture(t *testing.T, failures int32, maxAttempts int) (*fixture, *conflictingStore) {
	t.Helper()
	base := newFixture(t)
	store := &conflictingStore{Store: base.store}
	store.failures.Store(failures)

	policy := DefaultPolicy(timeutil.UTC)
	policy.MaxAttempts = maxAttempts
	base.engine = NewEngine(store,
		badge.NewEvaluator(testBadges(t)),
		curriculum.NewMachine(testCurriculum(t)),
		policy, WithClock(base.clock.Now), WithPublisher(base.events))
	return base, store
}

func TestEngine_RetriesWriteConflicts(t *testing.T) {
	f, store := newConflictFixture(t, 2, 5)

	res := f.record(t, "u1", 10)
	assert.Equal(t, 1, res.Stats.TotalSessions)
	assert.Equal(t, int32(3), store.begins.Load())

	s := f.stats(t, "u1")
	assert.Equal(t, 1, s.TotalSessions)
	assert.Equal(t, 1, s.BadgesEarned)

	// Only the committed attempt publishes.
	var recorded int
	for _, typ := range f.events.types() {
		if typ == shared.EventSessionRecorded {
			recorded++
		}
	}
	assert.Equal(t, 1, recorded)
}

func TestEngine_GivesUpAfterMaxAttempts(t *testing.T) {
	f, store := newConflictFixture(t, 10, 3)

	_, err := NewRecordSessionHandler(f.engine).Handle(context.Background(), RecordSessionCommand{
		UserID: "u1", ItemID: "scales", DurationMinutes: 10, SentimentScore: 3,
	})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.Equal(t, int32(3), store.begins.Load())
	assert.Equal(t, 0, f.stats(t, "u1").TotalSessions)
	assert.Empty(t, f.events.types())
}

func mustSession(t *testing.T, userID string) *practice.Session {
	t.Helper()
	s, err := practice.NewSession(userID, "scales", 10, 3, false, "", time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), practice.DefaultLimits())
	require.NoError(t, err)
	return s
}

func TestEngine_RuleFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", stats.Delta{AddShields: 3})
	ctx := context.Background()
	session := mustSession(t, "u1")

	// The session is staged, then the delta breaks the shield cap and the
	// whole unit is discarded.
	_, err := f.engine.inUserTx(ctx, "test", "u1", func(ctx context.Context, tx *userTx) error {
		if err := tx.uow.Sessions().Create(ctx, session); err != nil {
			return err
		}
		return tx.apply(ctx, stats.Delta{AddXP: 10, AddShields: 1}, "test")
	})
	assert.True(t, shared.IsValidation(err))

	s := f.stats(t, "u1")
	assert.Equal(t, 0, s.TotalXP)
	assert.Equal(t, 3, s.StreakShieldCount)

	_, err = NewDeleteSessionHandler(f.engine).Handle(ctx, DeleteSessionCommand{UserID: "u1", SessionID: session.ID})
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, f.events.types())
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := NewDeleteSessionHandler(f.engine)

	rec := f.record(t, "u1", 10)
	id := rec.Session.ID

	_, err := h.Handle(ctx, DeleteSessionCommand{UserID: "u2", SessionID: id})
	assert.True(t, shared.IsNotFound(err))

	res, err := h.Handle(ctx, DeleteSessionCommand{UserID: "u1", SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, id, res.SessionID)

	// Stats keep the deleted session's contribution.
	s := f.stats(t, "u1")
	assert.Equal(t, 1, s.TotalSessions)
	assert.Equal(t, 15+20, s.TotalXP)

	_, err = h.Handle(ctx, DeleteSessionCommand{UserID: "u1", SessionID: id})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, DeleteSessionCommand{UserID: "u1"})
	assert.True(t, shared.IsValidation(err))
}

func TestSetLeaderboardVisibility(t *testing.T) {
	f := newFixture(t)
	repo := memory.NewLeaderboardRepository(f.store)
	h := NewSetLeaderboardVisibilityHandler(repo, f.engine)
	ctx := context.Background()

	res, err := h.Handle(ctx, SetLeaderboardVisibilityCommand{UserID: "u1", Visible: true})
	require.NoError(t, err)
	assert.True(t, res.Visible)

	visible, err := repo.IsVisible(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, visible)

	_, err = h.Handle(ctx, SetLeaderboardVisibilityCommand{UserID: "u1", Visible: false})
	require.NoError(t, err)
	visible, err = repo.IsVisible(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, visible)

	assert.Equal(t, []shared.EventType{shared.EventLeaderboardVisibility, shared.EventLeaderboardVisibility}, f.events.types())

	_, err = h.Handle(ctx, SetLeaderboardVisibilityCommand{})
	assert.True(t, shared.IsValidation(err))
}

func TestPolicyFromConfig_Defaults(t *testing.T) {
	p := DefaultPolicy(timeutil.UTC)

	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 50, p.Shields.Cost)
	assert.Equal(t, 3, p.Stats.ShieldCap)
	assert.Equal(t, 25, p.StepXP)
	assert.Equal(t, 100, p.MilestoneXP)
	assert.Equal(t, 2, p.Levels.LevelFor(100))
}
