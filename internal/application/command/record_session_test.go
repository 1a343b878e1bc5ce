package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
)

func TestRecordSession_FirstSessionChainsBadges(t *testing.T) {
	f := newFixture(t)

	res, err := NewRecordSessionHandler(f.engine).Handle(context.Background(), RecordSessionCommand{
		UserID:              "u1",
		ItemID:              "scales",
		DurationMinutes:     60,
		SentimentScore:      5,
		ImprovementDetected: true,
	})
	require.NoError(t, err)

	// 5 + 60 + 8 + 10
	assert.Equal(t, 83, res.XPEarned)
	assert.Equal(t, 83, res.Session.XPEarned)

	// first_session pays 20 XP, which crosses 100 and unlocks xp_100
	assert.Equal(t, []string{"first_session", "xp_100"}, res.BadgesNewlyEarned)
	require.NotNil(t, res.LevelUp)
	assert.Equal(t, 2, res.LevelUp.NewLevel)

	require.NotNil(t, res.StreakUpdate)
	assert.True(t, res.StreakUpdate.StreakUpdated)
	assert.False(t, res.StreakUpdate.StreakContinued)
	assert.Equal(t, 1, res.StreakUpdate.CurrentStreak)

	s := f.stats(t, "u1")
	assert.Equal(t, res.Stats, s)
	assert.Equal(t, 103, s.TotalXP)
	assert.Equal(t, 2, s.CurrentLevel)
	assert.Equal(t, 15, s.GemsBalance)
	assert.Equal(t, 2, s.BadgesEarned)
	assert.Equal(t, 1, s.TotalSessions)
	assert.Equal(t, 60, s.TotalMinutes)
	assert.Equal(t, date(2026, 3, 2), s.LastPracticeDate)

	types := f.events.types()
	assert.Contains(t, types, shared.EventSessionRecorded)
	assert.Contains(t, types, shared.EventStreakUpdated)
	assert.Contains(t, types, shared.EventLevelUp)
	assert.Contains(t, types, shared.EventBadgeEarned)
	assert.Equal(t, res.Events, f.events.events)
}

func TestRecordSession_BadgesAreAwardedOnce(t *testing.T) {
	f := newFixture(t)

	first := f.record(t, "u1", 10)
	assert.Equal(t, []string{"first_session"}, first.BadgesNewlyEarned)

	second := f.record(t, "u1", 10)
	assert.Empty(t, second.BadgesNewlyEarned)
	assert.NotNil(t, second.BadgesNewlyEarned)
	assert.Nil(t, second.LevelUp)

	assert.Equal(t, 1, f.stats(t, "u1").BadgesEarned)
}

func TestRecordSession_SameDayKeepsStreak(t *testing.T) {
	f := newFixture(t)

	f.record(t, "u1", 10)
	res := f.record(t, "u1", 10)

	assert.Nil(t, res.StreakUpdate)
	assert.Equal(t, 1, res.Stats.CurrentStreak)
	assert.Equal(t, 2, res.Stats.TotalSessions)
}

func TestRecordSession_ConsecutiveDaysBuildStreak(t *testing.T) {
	f := newFixture(t)

	f.record(t, "u1", 10)
	f.clock.AddDays(1)
	res := f.record(t, "u1", 10)
	require.NotNil(t, res.StreakUpdate)
	assert.True(t, res.StreakUpdate.StreakContinued)
	assert.Equal(t, 2, res.StreakUpdate.CurrentStreak)

	f.clock.AddDays(1)
	res = f.record(t, "u1", 10)
	assert.Equal(t, 3, res.StreakUpdate.CurrentStreak)
	assert.Contains(t, res.BadgesNewlyEarned, "streak_3")

	s := f.stats(t, "u1")
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
	assert.Equal(t, date(2026, 3, 4), s.LastPracticeDate)
}

func TestRecordSession_GapWithoutShieldsBreaksStreak(t *testing.T) {
	f := newFixture(t)

	f.record(t, "u1", 10)
	f.clock.AddDays(1)
	f.record(t, "u1", 10)
	f.clock.AddDays(3)
	res := f.record(t, "u1", 10)

	require.NotNil(t, res.StreakUpdate)
	assert.True(t, res.StreakUpdate.StreakBroken)
	assert.True(t, res.StreakUpdate.StreakUpdated)
	assert.Equal(t, 1, res.StreakUpdate.CurrentStreak)
	assert.Equal(t, 0, res.StreakUpdate.ShieldsConsumed)

	s := f.stats(t, "u1")
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
	assert.Equal(t, date(2026, 3, 6), s.LastPracticeDate)
	assert.Contains(t, f.events.types(), shared.EventStreakBroken)
}

func TestRecordSession_BrokenStreakOfOneStillMovesDate(t *testing.T) {
	f := newFixture(t)

	f.record(t, "u1", 10)
	f.clock.AddDays(5)
	res := f.record(t, "u1", 10)

	require.NotNil(t, res.StreakUpdate)
	assert.Equal(t, 1, res.StreakUpdate.CurrentStreak)
	assert.Equal(t, date(2026, 3, 7), f.stats(t, "u1").LastPracticeDate)
}

func TestRecordSession_ShieldsCoverGap(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", stats.Delta{AddGems: 100, AddShields: 2})

	f.record(t, "u1", 10)
	f.clock.AddDays(3)
	res := f.record(t, "u1", 10)

	require.NotNil(t, res.StreakUpdate)
	assert.True(t, res.StreakUpdate.StreakContinued)
	assert.False(t, res.StreakUpdate.StreakBroken)
	assert.Equal(t, 2, res.StreakUpdate.ShieldsConsumed)
	assert.Equal(t, 2, res.StreakUpdate.CurrentStreak)
	assert.Equal(t, 0, f.stats(t, "u1").StreakShieldCount)
	assert.Contains(t, f.events.types(), shared.EventShieldConsumed)
}

func TestRecordSession_ShieldsTooFewAreKept(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", stats.Delta{AddShields: 1})

	f.record(t, "u1", 10)
	f.clock.AddDays(3)
	res := f.record(t, "u1", 10)

	require.NotNil(t, res.StreakUpdate)
	assert.True(t, res.StreakUpdate.StreakBroken)
	assert.Equal(t, 1, f.stats(t, "u1").StreakShieldCount)
}

func TestRecordSession_ShieldsFeatureOff(t *testing.T) {
	f := newFixture(t, WithFeatures(featureSet{config.FeatureStreakShields: false}))
	f.seed(t, "u1", stats.Delta{AddShields: 1})

	f.record(t, "u1", 10)
	f.clock.AddDays(2)
	res := f.record(t, "u1", 10)

	require.NotNil(t, res.StreakUpdate)
	assert.True(t, res.StreakUpdate.StreakBroken)
	assert.Equal(t, 1, f.stats(t, "u1").StreakShieldCount)
}

func TestRecordSession_BadgesFeatureOff(t *testing.T) {
	f := newFixture(t, WithFeatures(featureSet{config.FeatureBadges: false}))

	res := f.record(t, "u1", 10)
	assert.Empty(t, res.BadgesNewlyEarned)
	assert.Equal(t, 0, f.stats(t, "u1").BadgesEarned)
}

func TestRecordSession_StampedWithServerTime(t *testing.T) {
	f := newFixture(t)

	first := f.record(t, "u1", 10)
	assert.Equal(t, f.clock.Now(), first.Session.CreatedAt)

	for day := 2; day <= 6; day++ {
		f.clock.AddDays(1)
		res := f.record(t, "u1", 10)
		require.NotNil(t, res.StreakUpdate)
		assert.True(t, res.StreakUpdate.StreakUpdated, "day %d", day)
		assert.True(t, res.StreakUpdate.StreakContinued, "day %d", day)
		assert.Equal(t, day, res.StreakUpdate.CurrentStreak)
	}
	assert.Equal(t, date(2026, 3, 7), f.stats(t, "u1").LastPracticeDate)
}

func TestRecordSession_InvalidInputChangesNothing(t *testing.T) {
	f := newFixture(t)
	h := NewRecordSessionHandler(f.engine)

	cases := []RecordSessionCommand{
		{UserID: "", ItemID: "scales", DurationMinutes: 10, SentimentScore: 3},
		{UserID: "u1", ItemID: "", DurationMinutes: 10, SentimentScore: 3},
		{UserID: "u1", ItemID: "scales", DurationMinutes: 0, SentimentScore: 3},
		{UserID: "u1", ItemID: "scales", DurationMinutes: 10, SentimentScore: 6},
	}
	for _, cmd := range cases {
		_, err := h.Handle(context.Background(), cmd)
		assert.True(t, shared.IsValidation(err), "%+v: %v", cmd, err)
	}
	assert.Equal(t, 0, f.store.Users())
	assert.Empty(t, f.events.types())
}

func TestRecordSession_ConcurrentSessionsAreSerialized(t *testing.T) {
	f := newFixture(t)
	h := NewRecordSessionHandler(f.engine)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), RecordSessionCommand{
				UserID: "u1", ItemID: "scales", DurationMinutes: 10, SentimentScore: 1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s := f.stats(t, "u1")
	assert.Equal(t, n, s.TotalSessions)
	assert.Equal(t, n*10, s.TotalMinutes)
	// n sessions at 15 XP plus first_session
	assert.Equal(t, n*15+20, s.TotalXP)
	assert.Equal(t, 2, s.BadgesEarned)
}
