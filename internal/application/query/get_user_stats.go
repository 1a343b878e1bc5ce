package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/progression"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Returns the stats snapshot with level progress and earned badges. Reads
// never create records: an unknown user gets the zeroed snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsQuery names the user.
type GetUserStatsQuery struct {
	UserID string
}

// EarnedBadge is a badge the user holds, with catalog details.
type EarnedBadge struct {
	badge.UserBadge
	Name     string `json:"name"`
	Category string `json:"category"`
}

// GetUserStatsResult is the user's progress overview.
type GetUserStatsResult struct {
	Stats         stats.UserStats           `json:"stats"`
	LevelProgress progression.LevelProgress `json:"level_progress"`
	Badges        []EarnedBadge             `json:"badges"`
}

// GetUserStatsHandler handles stats requests.
type GetUserStatsHandler struct {
	store   stats.Store
	levels  progression.LevelTable
	catalog *badge.Catalog
}

// NewGetUserStatsHandler creates a new handler.
func NewGetUserStatsHandler(store stats.Store, levels progression.LevelTable, catalog *badge.Catalog) *GetUserStatsHandler {
	return &GetUserStatsHandler{store: store, levels: levels, catalog: catalog}
}

// Handle executes the query.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStatsQuery) (*GetUserStatsResult, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, shared.Validationf("query", "GetUserStats", "user_id is required")
	}

	s, err := h.store.Get(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	var earned []badge.UserBadge
	err = readOnly(ctx, h.store, func(uow stats.UnitOfWork) error {
		var err error
		earned, err = uow.Badges().ListByUser(ctx, q.UserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}

	badges := make([]EarnedBadge, 0, len(earned))
	for _, ub := range earned {
		eb := EarnedBadge{UserBadge: ub}
		if h.catalog != nil {
			if b, ok := h.catalog.Get(ub.BadgeKey); ok {
				eb.Name, eb.Category = b.Name, b.Category
			}
		}
		badges = append(badges, eb)
	}

	return &GetUserStatsResult{
		Stats:         s,
		LevelProgress: h.levels.Progress(s.TotalXP),
		Badges:        badges,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST SESSIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListSessionsQuery pages a user's sessions, newest first.
type ListSessionsQuery struct {
	UserID string
	Limit  int
	Offset int
}

// ListSessionsResult is one page of sessions.
type ListSessionsResult struct {
	Sessions []*practice.Session `json:"sessions"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
}

// ListSessionsHandler handles session list requests.
type ListSessionsHandler struct {
	store stats.Store
}

// NewListSessionsHandler creates a new handler.
func NewListSessionsHandler(store stats.Store) *ListSessionsHandler {
	return &ListSessionsHandler{store: store}
}

// Handle executes the query.
func (h *ListSessionsHandler) Handle(ctx context.Context, q ListSessionsQuery) (*ListSessionsResult, error) {
	const op = "ListSessions"

	if strings.TrimSpace(q.UserID) == "" {
		return nil, shared.Validationf("query", op, "user_id is required")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, shared.Validationf("query", op, "limit and offset cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	var sessions []*practice.Session
	err := readOnly(ctx, h.store, func(uow stats.UnitOfWork) error {
		var err error
		sessions, err = uow.Sessions().ListByUser(ctx, q.UserID, practice.ListOptions{Limit: q.Limit, Offset: q.Offset})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*practice.Session{}
	}
	return &ListSessionsResult{Sessions: sessions, Limit: q.Limit, Offset: q.Offset}, nil
}

// readOnly runs fn in a unit of work that locks nothing and is rolled back.
func readOnly(ctx context.Context, store stats.Store, fn func(uow stats.UnitOfWork) error) error {
	uow, err := store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()
	return fn(uow)
}
