package practice

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

// HistoryQuery configures which sessions count toward history facts.
type HistoryQuery struct {
	// LongSessionMinutes is the minimum duration of a long session.
	LongSessionMinutes int
	// EarlyBeforeHour: sessions starting strictly before this local hour are early.
	EarlyBeforeHour int
	// LateFromHour: sessions starting at or after this local hour are late.
	LateFromHour int
	// Zone is the local time zone for hour bands and calendar dates.
	Zone timeutil.Zone
}

// DefaultHistoryQuery uses 30 minutes, before 07:00 and from 21:00.
func DefaultHistoryQuery(zone timeutil.Zone) HistoryQuery {
	return HistoryQuery{
		LongSessionMinutes: 30,
		EarlyBeforeHour:    7,
		LateFromHour:       21,
		Zone:               zone,
	}
}

// History is the aggregate view of a user's sessions used by badge criteria.
type History struct {
	TotalSessions int
	LongSessions  int
	EarlySessions int
	LateSessions  int

	// Latest and Previous are the start times of the two most recent
	// sessions. Previous is nil with fewer than two sessions.
	Latest   *time.Time
	Previous *time.Time
}

// GapDays returns the number of calendar days between the two most recent
// sessions, and false when there are fewer than two.
func (h History) GapDays(zone timeutil.Zone) (int, bool) {
	if h.Latest == nil || h.Previous == nil {
		return 0, false
	}
	return zone.DateOf(*h.Previous).DaysUntil(zone.DateOf(*h.Latest)), true
}

// Summarize computes History from a slice of sessions. Storage backends that
// cannot aggregate in their query language use it directly.
func Summarize(sessions []*Session, q HistoryQuery) History {
	var h History
	if len(sessions) == 0 {
		return h
	}

	ordered := make([]*Session, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	for _, s := range ordered {
		h.TotalSessions++
		if s.IsLong(q.LongSessionMinutes) {
			h.LongSessions++
		}
		hour := q.Zone.Hour(s.CreatedAt)
		if hour < q.EarlyBeforeHour {
			h.EarlySessions++
		}
		if hour >= q.LateFromHour {
			h.LateSessions++
		}
	}

	latest := ordered[0].CreatedAt
	h.Latest = &latest
	if len(ordered) > 1 {
		prev := ordered[1].CreatedAt
		h.Previous = &prev
	}
	return h
}

// ListOptions pages a user's session list, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// Repository stores practice sessions. Implementations bound to a unit of
// work see that unit's uncommitted writes.
type Repository interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// Get returns a session by id or shared.ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Missing sessions return shared.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]*Session, error)

	// History aggregates the user's sessions.
	History(ctx context.Context, userID string, q HistoryQuery) (History, error)
}
