// Package stats owns the per-user aggregate record (XP, level, streak, gems,
// shields and counters) and the only operation allowed to change it:
// applying a Delta atomically.
package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

// UserStats is the aggregate record for one user.
type UserStats struct {
	UserID            string         `json:"user_id"`
	TotalXP           int            `json:"total_xp"`
	CurrentLevel      int            `json:"current_level"`
	CurrentStreak     int            `json:"current_streak"`
	LongestStreak     int            `json:"longest_streak"`
	GemsBalance       int            `json:"gems_balance"`
	StreakShieldCount int            `json:"streak_shield_count"`
	TotalSessions     int            `json:"total_sessions"`
	TotalMinutes      int            `json:"total_minutes"`
	BadgesEarned      int            `json:"badges_earned"`
	LastPracticeDate  *timeutil.Date `json:"last_practice_date"`

	// Version increases by one on every applied delta.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the zeroed record a user starts with.
func New(userID string) UserStats {
	return UserStats{UserID: userID, CurrentLevel: 1}
}

// Clone returns a deep copy.
func (s UserStats) Clone() UserStats {
	if s.LastPracticeDate != nil {
		d := *s.LastPracticeDate
		s.LastPracticeDate = &d
	}
	return s
}

// StreakChange replaces the streak fields.
type StreakChange struct {
	Current          int
	Longest          int
	LastPracticeDate timeutil.Date
}

// Delta is a set of field changes applied all-or-nothing.
type Delta struct {
	AddXP       int
	SetLevel    *int
	AddGems     int
	Streak      *StreakChange
	AddShields  int
	AddSessions int
	AddMinutes  int
	AddBadges   int
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.AddXP == 0 && d.SetLevel == nil && d.AddGems == 0 && d.Streak == nil &&
		d.AddShields == 0 && d.AddSessions == 0 && d.AddMinutes == 0 && d.AddBadges == 0
}

// Merge combines two deltas. Additive fields add up; set fields take other's
// value when present.
func (d Delta) Merge(other Delta) Delta {
	out := Delta{
		AddXP:       d.AddXP + other.AddXP,
		AddGems:     d.AddGems + other.AddGems,
		AddShields:  d.AddShields + other.AddShields,
		AddSessions: d.AddSessions + other.AddSessions,
		AddMinutes:  d.AddMinutes + other.AddMinutes,
		AddBadges:   d.AddBadges + other.AddBadges,
		SetLevel:    d.SetLevel,
		Streak:      d.Streak,
	}
	if other.SetLevel != nil {
		out.SetLevel = other.SetLevel
	}
	if other.Streak != nil {
		out.Streak = other.Streak
	}
	return out
}

func (d Delta) String() string {
	var parts []string
	add := func(name string, v int) {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s%+d", name, v))
		}
	}
	add("xp", d.AddXP)
	add("gems", d.AddGems)
	add("shields", d.AddShields)
	add("sessions", d.AddSessions)
	add("minutes", d.AddMinutes)
	add("badges", d.AddBadges)
	if d.SetLevel != nil {
		parts = append(parts, fmt.Sprintf("level=%d", *d.SetLevel))
	}
	if d.Streak != nil {
		parts = append(parts, fmt.Sprintf("streak=%d/%d@%s", d.Streak.Current, d.Streak.Longest, d.Streak.LastPracticeDate))
	}
	return "Delta{" + strings.Join(parts, " ") + "}"
}

// Limits are the configurable bounds Apply enforces.
type Limits struct {
	ShieldCap int
}

// Apply returns current with delta applied, or a validation error when the
// result would break an invariant. current is never modified.
func Apply(current UserStats, delta Delta, limits Limits, now time.Time) (UserStats, error) {
	const op = "ApplyDelta"

	next := current.Clone()
	next.TotalXP += delta.AddXP
	next.GemsBalance += delta.AddGems
	next.StreakShieldCount += delta.AddShields
	next.TotalSessions += delta.AddSessions
	next.TotalMinutes += delta.AddMinutes
	next.BadgesEarned += delta.AddBadges
	if delta.SetLevel != nil {
		next.CurrentLevel = *delta.SetLevel
	}
	if delta.Streak != nil {
		next.CurrentStreak = delta.Streak.Current
		next.LongestStreak = delta.Streak.Longest
		d := delta.Streak.LastPracticeDate
		next.LastPracticeDate = &d
	}

	fail := func(format string, args ...any) (UserStats, error) {
		return current, shared.NewDomainError("stats", op, shared.ErrValidation, fmt.Sprintf(format, args...))
	}

	switch {
	case delta.AddXP < 0:
		return fail("total_xp cannot decrease (add_xp %d)", delta.AddXP)
	case next.CurrentLevel < current.CurrentLevel:
		return fail("current_level cannot decrease (%d -> %d)", current.CurrentLevel, next.CurrentLevel)
	case next.CurrentLevel < 1:
		return fail("current_level must be >= 1")
	case next.GemsBalance < 0:
		return fail("gems_balance cannot be negative (%d)", next.GemsBalance)
	case next.StreakShieldCount < 0 || next.StreakShieldCount > limits.ShieldCap:
		return fail("streak_shield_count must be within 0..%d (%d)", limits.ShieldCap, next.StreakShieldCount)
	case next.CurrentStreak < 0:
		return fail("current_streak cannot be negative")
	case next.LongestStreak < next.CurrentStreak:
		return fail("longest_streak %d is below current_streak %d", next.LongestStreak, next.CurrentStreak)
	case next.LongestStreak < current.LongestStreak:
		return fail("longest_streak cannot decrease")
	case next.TotalSessions < 0 || next.TotalMinutes < 0 || next.BadgesEarned < 0:
		return fail("counters cannot be negative")
	}

	next.Version = current.Version + 1
	next.UpdatedAt = now
	return next, nil
}
