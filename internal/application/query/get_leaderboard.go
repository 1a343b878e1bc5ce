// Package query contains read operations following the CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns one page of opted-in users ranked by a stats metric. Served from
// the cached snapshot, which may lag writes by the refresh interval.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardReader serves ranked reads. service.LeaderboardService
// implements it.
type LeaderboardReader interface {
	Page(ctx context.Context, q leaderboard.Query) (leaderboard.Page, error)
	Position(ctx context.Context, userID string, o leaderboard.Ordering) (leaderboard.Rank, error)
}

// GetLeaderboardQuery selects a leaderboard page.
type GetLeaderboardQuery struct {
	// Limit is the page size (default 20, maximum 100).
	Limit int

	// Offset skips rows for pagination.
	Offset int

	// SortBy is one of total_xp, current_level, current_streak,
	// badges_earned. Empty means total_xp.
	SortBy string

	// SortOrder is asc or desc. Empty means desc.
	SortOrder string
}

// Validate checks the query and converts it into a leaderboard.Query.
func (q GetLeaderboardQuery) Validate() (leaderboard.Query, error) {
	const op = "GetLeaderboard"

	if q.Limit < 0 {
		return leaderboard.Query{}, shared.Validationf("query", op, "limit cannot be negative")
	}
	if q.Offset < 0 {
		return leaderboard.Query{}, shared.Validationf("query", op, "offset cannot be negative")
	}
	key, err := leaderboard.ParseSortKey(q.SortBy)
	if err != nil {
		return leaderboard.Query{}, shared.WrapError("query", op, shared.ErrValidation, "invalid sort_by", err)
	}
	order, err := leaderboard.ParseSortOrder(q.SortOrder)
	if err != nil {
		return leaderboard.Query{}, shared.WrapError("query", op, shared.ErrValidation, "invalid sort_order", err)
	}
	return leaderboard.Query{Limit: q.Limit, Offset: q.Offset, SortBy: key, Order: order}.Normalize(), nil
}

// Pagination describes the returned window.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// GetLeaderboardResult is one ranked page.
type GetLeaderboardResult struct {
	Rows       []leaderboard.Row `json:"rows"`
	Pagination Pagination        `json:"pagination"`
	SortBy     string            `json:"sort_by"`
	SortOrder  string            `json:"sort_order"`

	// BuiltAt is when the snapshot behind this page was taken.
	BuiltAt time.Time `json:"built_at"`
}

// GetLeaderboardHandler handles leaderboard page requests.
type GetLeaderboardHandler struct {
	reader LeaderboardReader
}

// NewGetLeaderboardHandler creates a new handler.
func NewGetLeaderboardHandler(reader LeaderboardReader) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{reader: reader}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	lq, err := q.Validate()
	if err != nil {
		return nil, err
	}

	page, err := h.reader.Page(ctx, lq)
	if err != nil {
		return nil, err
	}

	rows := page.Rows
	if rows == nil {
		rows = []leaderboard.Row{}
	}
	return &GetLeaderboardResult{
		Rows: rows,
		Pagination: Pagination{
			Limit:   page.Limit,
			Offset:  page.Offset,
			Total:   page.Total,
			HasMore: page.Offset+len(rows) < page.Total,
		},
		SortBy:    string(lq.SortBy),
		SortOrder: string(lq.Order),
		BuiltAt:   page.BuiltAt,
	}, nil
}
