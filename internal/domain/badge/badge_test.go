package badge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

func mustCriteria(t *testing.T, typ string, value int) Criteria {
	t.Helper()
	c, err := ParseCriteria(typ, value, DefaultCriteriaDefaults())
	require.NoError(t, err)
	return c
}

func TestParseCriteria(t *testing.T) {
	assert.Equal(t, PracticeSessions{Min: 10}, mustCriteria(t, "practice_sessions", 10))
	assert.Equal(t, TotalXP{Min: 500}, mustCriteria(t, "total_xp", 500))
	assert.Equal(t, Streak{Min: 7}, mustCriteria(t, "streak", 7))
	assert.Equal(t, LongSessionCount{Min: 5}, mustCriteria(t, "long_session_count", 5))
	assert.Equal(t, Comeback{MinGapDays: 7}, mustCriteria(t, "comeback", 0))
	assert.Equal(t, Comeback{MinGapDays: 14}, mustCriteria(t, "comeback", 14))
	assert.Equal(t, TimeOfDay{Band: EarlyBird, Required: 10}, mustCriteria(t, "time_of_day", 0))
	assert.Equal(t, TimeOfDay{Band: NightOwl, Required: 10}, mustCriteria(t, "time_of_day", 1))

	_, err := ParseCriteria("time_of_day", 2, DefaultCriteriaDefaults())
	assert.True(t, shared.IsValidation(err))

	_, err = ParseCriteria("lessons_watched", 1, DefaultCriteriaDefaults())
	assert.True(t, shared.IsValidation(err))

	_, err = ParseCriteria("streak", -1, DefaultCriteriaDefaults())
	assert.True(t, shared.IsValidation(err))
}

func TestCriteria_Satisfied(t *testing.T) {
	facts := Facts{
		TotalSessions: 10,
		TotalXP:       499,
		CurrentStreak: 3,
		LongSessions:  2,
		EarlySessions: 10,
		LateSessions:  9,
		GapDays:       7,
		HasGap:        true,
	}

	assert.True(t, PracticeSessions{Min: 10}.Satisfied(facts))
	assert.False(t, TotalXP{Min: 500}.Satisfied(facts))
	assert.False(t, Streak{Min: 7}.Satisfied(facts))
	assert.True(t, LongSessionCount{Min: 2}.Satisfied(facts))
	assert.True(t, Comeback{MinGapDays: 7}.Satisfied(facts))
	assert.True(t, TimeOfDay{Band: EarlyBird, Required: 10}.Satisfied(facts))
	assert.False(t, TimeOfDay{Band: NightOwl, Required: 10}.Satisfied(facts))

	assert.False(t, Comeback{MinGapDays: 7}.Satisfied(Facts{GapDays: 30}), "needs two sessions")
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Badge{
		{Key: "first", Criteria: PracticeSessions{Min: 1}},
		{Key: "first", Criteria: PracticeSessions{Min: 2}},
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = NewCatalog([]Badge{{Key: "neg", Criteria: TotalXP{Min: 1}, XPReward: -1}})
	assert.True(t, shared.IsValidation(err))
}

func TestEvaluator_PendingSkipsEarned(t *testing.T) {
	catalog, err := NewCatalog([]Badge{
		{Key: "first_session", Criteria: PracticeSessions{Min: 1}},
		{Key: "ten_sessions", Criteria: PracticeSessions{Min: 10}},
		{Key: "xp_100", Criteria: TotalXP{Min: 100}},
	})
	require.NoError(t, err)
	e := NewEvaluator(catalog)

	facts := Facts{TotalSessions: 10, TotalXP: 50}
	pending := e.Pending(facts, nil)
	require.Len(t, pending, 2)
	assert.Equal(t, "first_session", pending[0].Key)
	assert.Equal(t, "ten_sessions", pending[1].Key)

	earned := map[string]time.Time{"first_session": time.Now(), "ten_sessions": time.Now()}
	assert.Empty(t, e.Pending(Facts{TotalSessions: 11, TotalXP: 50}, earned))

	next, ok := e.Next(Facts{TotalSessions: 11, TotalXP: 150}, earned)
	require.True(t, ok)
	assert.Equal(t, "xp_100", next.Key)
}
