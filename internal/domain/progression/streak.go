package progression

import (
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

// StreakState is the streak-related part of a user's stats.
type StreakState struct {
	Current          int
	Longest          int
	Shields          int
	LastPracticeDate *timeutil.Date
}

// StreakOutcome is the result of advancing a streak by one session.
type StreakOutcome struct {
	State StreakState

	// Updated is true when Current changed.
	Updated bool
	// Continued is true when the previous streak was extended rather than
	// started or restarted.
	Continued bool
	// Broken is true when a gap could not be covered and the streak reset.
	Broken bool

	DaysMissed      int
	ShieldsConsumed int
	PreviousStreak  int
}

// StreakEngine advances daily streaks.
type StreakEngine struct {
	shieldsEnabled bool
}

// NewStreakEngine creates an engine. With shieldsEnabled false every gap
// resets the streak regardless of the shield inventory.
func NewStreakEngine(shieldsEnabled bool) StreakEngine {
	return StreakEngine{shieldsEnabled: shieldsEnabled}
}

// Advance applies a session practiced on day to state.
//
//   - no previous date: streak starts at 1
//   - same day, or a day before the last one: nothing changes
//   - next day: streak + 1
//   - gap of m missed days: if m <= shields, m shields are spent and the
//     streak continues (+1); otherwise the streak restarts at 1 and no
//     shields are spent
//
// Longest is raised to Current and LastPracticeDate moves to day, except for
// back-dated sessions which leave the state untouched.
func (e StreakEngine) Advance(state StreakState, day timeutil.Date) StreakOutcome {
	out := StreakOutcome{State: state, PreviousStreak: state.Current}
	next := state

	switch {
	case state.LastPracticeDate == nil:
		next.Current = 1

	case !day.After(*state.LastPracticeDate):
		return out

	default:
		missed := state.LastPracticeDate.DaysUntil(day) - 1
		out.DaysMissed = missed

		switch {
		case missed == 0:
			next.Current = state.Current + 1
			out.Continued = true
		case e.shieldsEnabled && missed <= state.Shields:
			next.Shields = state.Shields - missed
			next.Current = state.Current + 1
			out.Continued = true
			out.ShieldsConsumed = missed
		default:
			next.Current = 1
			out.Broken = state.Current > 0
		}
	}

	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	d := day
	next.LastPracticeDate = &d

	out.Updated = next.Current != state.Current
	out.State = next
	return out
}
