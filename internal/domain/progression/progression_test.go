package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

func TestComputeXP_Formula(t *testing.T) {
	p := DefaultXPPolicy()

	assert.Equal(t, 5+30+0, p.ComputeXP(30, 1, false))
	assert.Equal(t, 5+30+8, p.ComputeXP(30, 5, false))
	assert.Equal(t, 5+30+8+10, p.ComputeXP(30, 5, true))
}

func TestComputeXP_Monotonic(t *testing.T) {
	p := DefaultXPPolicy()

	for sentiment := MinSentiment; sentiment <= MaxSentiment; sentiment++ {
		for d := 1; d < 240; d++ {
			for _, improved := range []bool{false, true} {
				base := p.ComputeXP(d, sentiment, improved)

				assert.Greater(t, p.ComputeXP(d+1, sentiment, improved), base, "duration %d", d)
				if sentiment < MaxSentiment {
					assert.GreaterOrEqual(t, p.ComputeXP(d, sentiment+1, improved), base)
				}
				if !improved {
					assert.GreaterOrEqual(t, p.ComputeXP(d, sentiment, true), base)
				}
				assert.Equal(t, base, p.ComputeXP(d, sentiment, improved))
			}
		}
	}
}

func TestXPPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultXPPolicy().Validate())

	p := DefaultXPPolicy()
	p.XPPerMinute = 0
	assert.True(t, shared.IsValidation(p.Validate()))
}

func TestLevelTable_Default(t *testing.T) {
	table := DefaultLevelTable()

	assert.Equal(t, 100, table.MaxLevel())
	assert.Equal(t, 1, table.LevelFor(0))
	assert.Equal(t, 1, table.LevelFor(99))
	assert.Equal(t, 2, table.LevelFor(100))
	assert.Equal(t, 2, table.LevelFor(299))
	assert.Equal(t, 3, table.LevelFor(300))
	assert.Equal(t, 4, table.LevelFor(600))
	assert.Equal(t, 1, table.LevelFor(-5))
	assert.Equal(t, 100, table.LevelFor(1<<40))
}

func TestLevelTable_Monotonic(t *testing.T) {
	table := DefaultLevelTable()

	prev := table.LevelFor(0)
	for xp := 1; xp < 20000; xp++ {
		level := table.LevelFor(xp)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestNewLevelTable_Validation(t *testing.T) {
	_, err := NewLevelTable(nil)
	assert.Error(t, err)

	_, err = NewLevelTable([]int{10, 20})
	assert.Error(t, err)

	_, err = NewLevelTable([]int{0, 50, 50})
	assert.Error(t, err)

	table, err := NewLevelTable([]int{0, 50, 120})
	require.NoError(t, err)
	assert.Equal(t, 3, table.LevelFor(500))
	assert.True(t, table.LeveledUp(40, 60))
	assert.False(t, table.LeveledUp(60, 110))
}

func TestLevelTable_Progress(t *testing.T) {
	table := DefaultLevelTable()

	p := table.Progress(150)
	assert.Equal(t, LevelProgress{Level: 2, XPIntoLevel: 50, XPForNextLevel: 150}, p)

	small, err := NewLevelTable([]int{0, 10})
	require.NoError(t, err)
	top := small.Progress(25)
	assert.True(t, top.IsMaxLevel)
	assert.Equal(t, 2, top.Level)
	assert.Equal(t, 15, top.XPIntoLevel)
}

func day(n int) timeutil.Date {
	return timeutil.NewDate(2025, time.March, n)
}

func ptr(d timeutil.Date) *timeutil.Date { return &d }

func TestStreak_FirstSession(t *testing.T) {
	out := NewStreakEngine(true).Advance(StreakState{}, day(1))

	assert.Equal(t, 1, out.State.Current)
	assert.Equal(t, 1, out.State.Longest)
	assert.Equal(t, day(1), *out.State.LastPracticeDate)
	assert.True(t, out.Updated)
	assert.False(t, out.Continued)
}

func TestStreak_SameDayAndBackdated(t *testing.T) {
	engine := NewStreakEngine(true)
	state := StreakState{Current: 4, Longest: 6, LastPracticeDate: ptr(day(10))}

	same := engine.Advance(state, day(10))
	assert.False(t, same.Updated)
	assert.Equal(t, state, same.State)

	back := engine.Advance(state, day(8))
	assert.False(t, back.Updated)
	assert.Equal(t, day(10), *back.State.LastPracticeDate)
}

func TestStreak_NextDay(t *testing.T) {
	out := NewStreakEngine(true).Advance(StreakState{Current: 4, Longest: 4, LastPracticeDate: ptr(day(10))}, day(11))

	assert.Equal(t, 5, out.State.Current)
	assert.Equal(t, 5, out.State.Longest)
	assert.True(t, out.Continued)
	assert.Zero(t, out.ShieldsConsumed)
}

func TestStreak_ShieldScenario(t *testing.T) {
	engine := NewStreakEngine(true)

	state := StreakState{Current: 3, Longest: 3, Shields: 2, LastPracticeDate: ptr(day(1))}
	out := engine.Advance(state, day(4))
	assert.Equal(t, 4, out.State.Current)
	assert.Equal(t, 0, out.State.Shields)
	assert.Equal(t, 2, out.ShieldsConsumed)
	assert.Equal(t, 2, out.DaysMissed)
	assert.True(t, out.Continued)
	assert.False(t, out.Broken)

	out = engine.Advance(out.State, day(9))
	assert.Equal(t, 1, out.State.Current)
	assert.Equal(t, 4, out.State.Longest)
	assert.True(t, out.Broken)
	assert.Equal(t, 4, out.PreviousStreak)
}

func TestStreak_GapLargerThanShieldsKeepsShields(t *testing.T) {
	out := NewStreakEngine(true).Advance(StreakState{Current: 7, Longest: 7, Shields: 1, LastPracticeDate: ptr(day(1))}, day(5))

	assert.Equal(t, 1, out.State.Current)
	assert.Equal(t, 1, out.State.Shields)
	assert.Zero(t, out.ShieldsConsumed)
	assert.True(t, out.Broken)
}

func TestStreak_ShieldsDisabled(t *testing.T) {
	out := NewStreakEngine(false).Advance(StreakState{Current: 7, Longest: 7, Shields: 3, LastPracticeDate: ptr(day(1))}, day(3))

	assert.Equal(t, 1, out.State.Current)
	assert.Equal(t, 3, out.State.Shields)
}

func TestStreak_AcrossMonthBoundary(t *testing.T) {
	last := timeutil.NewDate(2025, time.January, 31)
	out := NewStreakEngine(true).Advance(StreakState{Current: 2, Longest: 2, LastPracticeDate: &last}, timeutil.NewDate(2025, time.February, 1))

	assert.Equal(t, 3, out.State.Current)
}

func TestShieldPurchase(t *testing.T) {
	p := DefaultShieldPolicy()

	_, err := p.Purchase(40, 0, 50)
	assert.ErrorIs(t, err, shared.ErrInsufficientGems)

	_, err = p.Purchase(100, 3, 50)
	assert.ErrorIs(t, err, shared.ErrShieldCapExceeded)

	_, err = p.Purchase(100, 0, 0)
	assert.True(t, shared.IsValidation(err))

	res, err := p.Purchase(100, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, ShieldPurchase{Cost: 50, NewGems: 50, NewShields: 2}, res)
}

func TestShieldPurchase_EnforcedCost(t *testing.T) {
	p := DefaultShieldPolicy()
	p.EnforceCost = true

	_, err := p.Purchase(100, 0, 10)
	assert.True(t, shared.IsValidation(err))

	_, err = p.Purchase(100, 0, 50)
	assert.NoError(t, err)
}
