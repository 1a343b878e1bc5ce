package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository reads leaderboard source data and stores opt-in preferences.
type Repository interface {
	// Entries returns the stats of every opted-in user, in no particular order.
	Entries(ctx context.Context) ([]Entry, error)

	// SetVisibility opts a user in or out.
	SetVisibility(ctx context.Context, userID string, visible bool, at time.Time) error

	// IsVisible reports whether a user opted in. Unknown users are not visible.
	IsVisible(ctx context.Context, userID string) (bool, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache serves ranked reads from the latest stored snapshot. Readers take no
// locks; Store replaces the snapshot wholesale.
type Cache interface {
	// Store replaces the cached snapshot.
	Store(ctx context.Context, s *Snapshot) error

	// Page returns a page under q or ErrCacheMiss when nothing is cached.
	Page(ctx context.Context, q Query) (Page, error)

	// Position returns a user's rank. ok is false when the user is not in
	// the snapshot; ErrCacheMiss when nothing is cached.
	Position(ctx context.Context, userID string, o Ordering) (rank Rank, ok bool, err error)

	// Meta returns the cached snapshot's metadata or ErrCacheMiss.
	Meta(ctx context.Context) (SnapshotMeta, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Page limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query selects one page of a leaderboard.
type Query struct {
	Limit  int
	Offset int
	SortBy SortKey
	Order  SortOrder
}

// DefaultQuery returns the first page by total XP, descending.
func DefaultQuery() Query {
	return Query{Limit: DefaultLimit, SortBy: SortByTotalXP, Order: OrderDesc}
}

// Normalize fills defaults and clamps the page window.
func (q Query) Normalize() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.SortBy == "" {
		q.SortBy = SortByTotalXP
	}
	if q.Order == "" {
		q.Order = OrderDesc
	}
	return q
}

func (q Query) Ordering() Ordering { return Ordering{Key: q.SortBy, Order: q.Order} }

// Page is one page of ranked rows.
type Page struct {
	Rows    []Row     `json:"rows"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	Total   int       `json:"total"`
	BuiltAt time.Time `json:"built_at"`
}
