package query

import (
	"context"
	"strings"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD POSITION QUERY
// Returns a user's 1-based rank: one plus the number of users strictly ahead
// under the same ordering.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardPositionQuery identifies the user and the ordering.
type GetLeaderboardPositionQuery struct {
	UserID    string
	SortBy    string
	SortOrder string
}

// GetLeaderboardPositionResult carries the rank.
type GetLeaderboardPositionResult struct {
	UserID    string `json:"user_id"`
	Position  int    `json:"position"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// GetLeaderboardPositionHandler handles position requests.
type GetLeaderboardPositionHandler struct {
	reader LeaderboardReader
}

// NewGetLeaderboardPositionHandler creates a new handler.
func NewGetLeaderboardPositionHandler(reader LeaderboardReader) *GetLeaderboardPositionHandler {
	return &GetLeaderboardPositionHandler{reader: reader}
}

// Handle executes the query. Users not on the leaderboard yield
// shared.ErrUserNotFound.
func (h *GetLeaderboardPositionHandler) Handle(ctx context.Context, q GetLeaderboardPositionQuery) (*GetLeaderboardPositionResult, error) {
	const op = "GetLeaderboardPosition"

	if strings.TrimSpace(q.UserID) == "" {
		return nil, shared.Validationf("query", op, "user_id is required")
	}
	lq, err := GetLeaderboardQuery{SortBy: q.SortBy, SortOrder: q.SortOrder}.Validate()
	if err != nil {
		return nil, err
	}

	rank, err := h.reader.Position(ctx, q.UserID, lq.Ordering())
	if err != nil {
		return nil, err
	}
	return &GetLeaderboardPositionResult{
		UserID:    q.UserID,
		Position:  int(rank),
		SortBy:    string(lq.SortBy),
		SortOrder: string(lq.Order),
	}, nil
}
