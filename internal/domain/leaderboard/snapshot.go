package leaderboard

import (
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is a point-in-time copy of every opted-in user's stats. Rankings
// for each ordering are built lazily and memoized. Reads lag writes by at
// most the refresh interval plus the rebuild time.
type Snapshot struct {
	ID      string
	BuiltAt time.Time

	entries []Entry

	mu       sync.Mutex
	rankings map[Ordering]*Ranking
}

// NewSnapshot creates a snapshot from entries.
func NewSnapshot(id string, entries []Entry, builtAt time.Time) *Snapshot {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Snapshot{
		ID:       id,
		BuiltAt:  builtAt,
		entries:  cp,
		rankings: make(map[Ordering]*Ranking),
	}
}

// Entries returns the raw, unsorted entries.
func (s *Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Snapshot) Count() int { return len(s.entries) }

func (s *Snapshot) IsEmpty() bool { return len(s.entries) == 0 }

// Ranking returns the memoized ranking for o.
func (s *Snapshot) Ranking(o Ordering) (*Ranking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rankings[o]; ok {
		return r, nil
	}
	r, err := NewRanking(s.entries, o)
	if err != nil {
		return nil, err
	}
	s.rankings[o] = r
	return r, nil
}

// Page returns one page of rows under q.
func (s *Snapshot) Page(q Query) (Page, error) {
	q = q.Normalize()
	r, err := s.Ranking(q.Ordering())
	if err != nil {
		return Page{}, err
	}
	return Page{
		Rows:    r.Slice(q.Offset, q.Limit),
		Limit:   q.Limit,
		Offset:  q.Offset,
		Total:   r.Count(),
		BuiltAt: s.BuiltAt,
	}, nil
}

// Position returns the rank of userID under o.
func (s *Snapshot) Position(userID string, o Ordering) (Rank, bool, error) {
	r, err := s.Ranking(o)
	if err != nil {
		return 0, false, err
	}
	rank, ok := r.Position(userID)
	return rank, ok, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT METADATA
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotMeta is stored next to a cached snapshot.
type SnapshotMeta struct {
	ID      string    `json:"id"`
	BuiltAt time.Time `json:"built_at"`
	Total   int       `json:"total"`
}

func (s *Snapshot) Meta() SnapshotMeta {
	return SnapshotMeta{ID: s.ID, BuiltAt: s.BuiltAt, Total: len(s.entries)}
}

// Age is the snapshot's staleness at now.
func (m SnapshotMeta) Age(now time.Time) time.Duration { return now.Sub(m.BuiltAt) }

func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{ID: %s, Entries: %d, BuiltAt: %s}",
		s.ID, len(s.entries), s.BuiltAt.Format(time.RFC3339))
}
