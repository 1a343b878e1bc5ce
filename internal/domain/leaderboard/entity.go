// Package leaderboard ranks opted-in users by one of their stats with a
// deterministic total order, so repeated reads of the same snapshot always
// return the same rows in the same positions.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position.
type Rank int

func (r Rank) IsValid() bool { return r > 0 }

func (r Rank) String() string { return fmt.Sprintf("#%d", r) }

// SortKey is the stat a leaderboard is ordered by.
type SortKey string

const (
	SortByTotalXP       SortKey = "total_xp"
	SortByCurrentLevel  SortKey = "current_level"
	SortByCurrentStreak SortKey = "current_streak"
	SortByBadgesEarned  SortKey = "badges_earned"
)

// SortKeys lists every supported key.
func SortKeys() []SortKey {
	return []SortKey{SortByTotalXP, SortByCurrentLevel, SortByCurrentStreak, SortByBadgesEarned}
}

// ParseSortKey parses a sort key; empty means total_xp.
func ParseSortKey(s string) (SortKey, error) {
	if strings.TrimSpace(s) == "" {
		return SortByTotalXP, nil
	}
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SortKeys() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, s)
}

// SortOrder is the direction of the primary key.
type SortOrder string

const (
	OrderDesc SortOrder = "desc"
	OrderAsc  SortOrder = "asc"
)

// SortOrders lists both directions.
func SortOrders() []SortOrder { return []SortOrder{OrderDesc, OrderAsc} }

// ParseSortOrder parses a direction; empty means desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderDesc:
		return OrderDesc, nil
	case OrderAsc:
		return OrderAsc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSortOrder, s)
	}
}

// Ordering is a (key, order) pair.
type Ordering struct {
	Key   SortKey
	Order SortOrder
}

func (o Ordering) String() string { return string(o.Key) + ":" + string(o.Order) }

// Orderings lists every supported ordering.
func Orderings() []Ordering {
	out := make([]Ordering, 0, len(SortKeys())*2)
	for _, k := range SortKeys() {
		for _, o := range SortOrders() {
			out = append(out, Ordering{Key: k, Order: o})
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one opted-in user's stats as seen by the ranker.
type Entry struct {
	UserID        string     `json:"user_id"`
	TotalXP       int        `json:"total_xp"`
	CurrentLevel  int        `json:"current_level"`
	CurrentStreak int        `json:"current_streak"`
	BadgesEarned  int        `json:"badges_earned"`
	FirstBadgeAt  *time.Time `json:"first_badge_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Metric returns the value of key for this entry.
func (e Entry) Metric(key SortKey) int {
	switch key {
	case SortByCurrentLevel:
		return e.CurrentLevel
	case SortByCurrentStreak:
		return e.CurrentStreak
	case SortByBadgesEarned:
		return e.BadgesEarned
	default:
		return e.TotalXP
	}
}

// Ahead reports whether a ranks strictly ahead of b under o. The primary key
// follows o.Order. Ties go to the earlier first badge (users without badges
// last), then to the smaller user id. Tie-breaks do not flip with the order.
func Ahead(a, b Entry, o Ordering) bool {
	ma, mb := a.Metric(o.Key), b.Metric(o.Key)
	if ma != mb {
		if o.Order == OrderAsc {
			return ma < mb
		}
		return ma > mb
	}

	switch {
	case a.FirstBadgeAt != nil && b.FirstBadgeAt == nil:
		return true
	case a.FirstBadgeAt == nil && b.FirstBadgeAt != nil:
		return false
	case a.FirstBadgeAt != nil && b.FirstBadgeAt != nil && !a.FirstBadgeAt.Equal(*b.FirstBadgeAt):
		return a.FirstBadgeAt.Before(*b.FirstBadgeAt)
	}
	return a.UserID < b.UserID
}

// Row is an entry with its rank.
type Row struct {
	Rank Rank `json:"rank"`
	Entry
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING (Ranked List)
// ══════════════════════════════════════════════════════════════════════════════

// Ranking is a list of entries sorted under one ordering.
type Ranking struct {
	ordering Ordering
	entries  []Entry
	index    map[string]int
}

// NewRanking sorts entries under o. Duplicate user ids are rejected.
func NewRanking(entries []Entry, o Ordering) (*Ranking, error) {
	r := &Ranking{
		ordering: o,
		entries:  make([]Entry, len(entries)),
		index:    make(map[string]int, len(entries)),
	}
	copy(r.entries, entries)

	sort.Slice(r.entries, func(i, j int) bool { return Ahead(r.entries[i], r.entries[j], o) })

	for i, e := range r.entries {
		if e.UserID == "" {
			return nil, ErrInvalidUserID
		}
		if _, dup := r.index[e.UserID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, e.UserID)
		}
		r.index[e.UserID] = i
	}
	return r, nil
}

func (r *Ranking) Ordering() Ordering { return r.ordering }

func (r *Ranking) Count() int { return len(r.entries) }

// Position returns the 1-based rank of userID: one plus the number of users
// strictly ahead of it.
func (r *Ranking) Position(userID string) (Rank, bool) {
	i, ok := r.index[userID]
	if !ok {
		return 0, false
	}
	return Rank(i + 1), true
}

// Slice returns rows [offset, offset+limit).
func (r *Ranking) Slice(offset, limit int) []Row {
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(r.entries) {
		end = len(r.entries)
	}
	if offset >= end {
		return []Row{}
	}
	rows := make([]Row, 0, end-offset)
	for i := offset; i < end; i++ {
		rows = append(rows, Row{Rank: Rank(i + 1), Entry: r.entries[i]})
	}
	return rows
}

// All returns every row.
func (r *Ranking) All() []Row { return r.Slice(0, len(r.entries)) }

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrInvalidUserID    = errors.New("invalid user id: cannot be empty")
	ErrDuplicateUser    = errors.New("user already exists in ranking")
	ErrInvalidSortKey   = errors.New("invalid sort key")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")
	ErrCacheMiss        = errors.New("leaderboard cache miss")
)
