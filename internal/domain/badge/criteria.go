// Package badge contains the badge catalog, the closed set of award criteria
// and the evaluator that decides which badges a user has newly earned.
package badge

import (
	"fmt"
	"strings"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// CriteriaType is the catalog name of a criteria variant.
type CriteriaType string

const (
	CriteriaPracticeSessions CriteriaType = "practice_sessions"
	CriteriaTotalXP          CriteriaType = "total_xp"
	CriteriaStreak           CriteriaType = "streak"
	CriteriaLongSessionCount CriteriaType = "long_session_count"
	CriteriaComeback         CriteriaType = "comeback"
	CriteriaTimeOfDay        CriteriaType = "time_of_day"
)

// Facts is everything criteria may look at. It is gathered once per
// evaluation pass.
type Facts struct {
	TotalSessions int
	TotalXP       int
	CurrentStreak int

	LongSessions  int
	EarlySessions int
	LateSessions  int

	// GapDays is the number of days between the two most recent sessions.
	// HasGap is false with fewer than two sessions.
	GapDays int
	HasGap  bool
}

// Criteria is a sealed set of award rules. Only the types in this file
// implement it.
type Criteria interface {
	Type() CriteriaType
	// Value is the numeric criteria_value as stored in the catalog.
	Value() int
	Satisfied(f Facts) bool

	sealed()
}

// PracticeSessions: total_sessions >= Min.
type PracticeSessions struct{ Min int }

func (c PracticeSessions) Type() CriteriaType     { return CriteriaPracticeSessions }
func (c PracticeSessions) Value() int             { return c.Min }
func (c PracticeSessions) Satisfied(f Facts) bool { return f.TotalSessions >= c.Min }
func (PracticeSessions) sealed()                  {}

// TotalXP: total_xp >= Min.
type TotalXP struct{ Min int }

func (c TotalXP) Type() CriteriaType     { return CriteriaTotalXP }
func (c TotalXP) Value() int             { return c.Min }
func (c TotalXP) Satisfied(f Facts) bool { return f.TotalXP >= c.Min }
func (TotalXP) sealed()                  {}

// Streak: current_streak >= Min.
type Streak struct{ Min int }

func (c Streak) Type() CriteriaType     { return CriteriaStreak }
func (c Streak) Value() int             { return c.Min }
func (c Streak) Satisfied(f Facts) bool { return f.CurrentStreak >= c.Min }
func (Streak) sealed()                  {}

// LongSessionCount: number of long sessions >= Min.
type LongSessionCount struct{ Min int }

func (c LongSessionCount) Type() CriteriaType     { return CriteriaLongSessionCount }
func (c LongSessionCount) Value() int             { return c.Min }
func (c LongSessionCount) Satisfied(f Facts) bool { return f.LongSessions >= c.Min }
func (LongSessionCount) sealed()                  {}

// Comeback: the latest session came at least MinGapDays after the one before.
type Comeback struct{ MinGapDays int }

func (c Comeback) Type() CriteriaType     { return CriteriaComeback }
func (c Comeback) Value() int             { return c.MinGapDays }
func (c Comeback) Satisfied(f Facts) bool { return f.HasGap && f.GapDays >= c.MinGapDays }
func (Comeback) sealed()                  {}

// DayBand selects early or late sessions.
type DayBand int

const (
	EarlyBird DayBand = 0
	NightOwl  DayBand = 1
)

func (b DayBand) String() string {
	if b == NightOwl {
		return "late"
	}
	return "early"
}

// TimeOfDay: at least Required sessions in Band.
type TimeOfDay struct {
	Band     DayBand
	Required int
}

func (c TimeOfDay) Type() CriteriaType { return CriteriaTimeOfDay }
func (c TimeOfDay) Value() int         { return int(c.Band) }
func (c TimeOfDay) Satisfied(f Facts) bool {
	if c.Band == NightOwl {
		return f.LateSessions >= c.Required
	}
	return f.EarlySessions >= c.Required
}
func (TimeOfDay) sealed() {}

// CriteriaDefaults supplies the policy numbers that catalog entries do not
// carry themselves.
type CriteriaDefaults struct {
	ComebackDays   int
	TimeOfDayCount int
}

// DefaultCriteriaDefaults returns 7 days and 10 sessions.
func DefaultCriteriaDefaults() CriteriaDefaults {
	return CriteriaDefaults{ComebackDays: 7, TimeOfDayCount: 10}
}

// ParseCriteria turns a catalog (criteria_type, criteria_value) pair into a
// Criteria. Unknown types are rejected.
func ParseCriteria(criteriaType string, value int, defaults CriteriaDefaults) (Criteria, error) {
	const op = "ParseCriteria"

	if value < 0 {
		return nil, shared.Validationf("badge", op, "criteria_value must be >= 0, got %d", value)
	}

	switch CriteriaType(strings.TrimSpace(criteriaType)) {
	case CriteriaPracticeSessions:
		return PracticeSessions{Min: value}, nil
	case CriteriaTotalXP:
		return TotalXP{Min: value}, nil
	case CriteriaStreak:
		return Streak{Min: value}, nil
	case CriteriaLongSessionCount:
		return LongSessionCount{Min: value}, nil
	case CriteriaComeback:
		days := value
		if days == 0 {
			days = defaults.ComebackDays
		}
		return Comeback{MinGapDays: days}, nil
	case CriteriaTimeOfDay:
		switch DayBand(value) {
		case EarlyBird, NightOwl:
			return TimeOfDay{Band: DayBand(value), Required: defaults.TimeOfDayCount}, nil
		default:
			return nil, shared.Validationf("badge", op, "time_of_day criteria_value must be 0 or 1, got %d", value)
		}
	default:
		return nil, shared.NewDomainError("badge", op, shared.ErrValidation,
			fmt.Sprintf("unknown criteria_type %q", criteriaType))
	}
}
