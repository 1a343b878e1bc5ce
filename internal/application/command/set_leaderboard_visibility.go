package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET LEADERBOARD VISIBILITY COMMAND
// Opts a user in or out of the public leaderboard. Users start opted out.
// ══════════════════════════════════════════════════════════════════════════════

// SetLeaderboardVisibilityCommand contains the new preference.
type SetLeaderboardVisibilityCommand struct {
	UserID  string
	Visible bool
}

// SetLeaderboardVisibilityResult echoes the stored preference.
type SetLeaderboardVisibilityResult struct {
	Visible bool           `json:"visible"`
	Events  []shared.Event `json:"-"`
}

// SetLeaderboardVisibilityHandler handles SetLeaderboardVisibilityCommand.
type SetLeaderboardVisibilityHandler struct {
	repo      leaderboard.Repository
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewSetLeaderboardVisibilityHandler creates a new handler.
func NewSetLeaderboardVisibilityHandler(repo leaderboard.Repository, engine *Engine) *SetLeaderboardVisibilityHandler {
	return &SetLeaderboardVisibilityHandler{
		repo:      repo,
		publisher: engine.publisher,
		log:       engine.log,
		now:       engine.now,
	}
}

// Handle executes the command.
func (h *SetLeaderboardVisibilityHandler) Handle(ctx context.Context, cmd SetLeaderboardVisibilityCommand) (*SetLeaderboardVisibilityResult, error) {
	const op = "SetLeaderboardVisibility"

	if err := requireUserID(op, cmd.UserID); err != nil {
		return nil, err
	}

	now := h.now()
	if err := h.repo.SetVisibility(ctx, cmd.UserID, cmd.Visible, now); err != nil {
		return nil, fmt.Errorf("failed to store leaderboard visibility: %w", err)
	}

	event := shared.NewEvent(shared.EventLeaderboardVisibility, cmd.UserID, now, map[string]any{
		"visible": cmd.Visible,
	})
	if err := shared.PublishAll(h.publisher, []shared.Event{event}); err != nil {
		h.log.Warn("failed to publish events", logger.Operation(op), logger.UserID(cmd.UserID), logger.Err(err))
	}

	h.log.Info("leaderboard visibility changed", logger.UserID(cmd.UserID), logger.Bool("visible", cmd.Visible))
	return &SetLeaderboardVisibilityResult{Visible: cmd.Visible, Events: []shared.Event{event}}, nil
}
