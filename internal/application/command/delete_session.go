package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE SESSION COMMAND
// Removes a logged session. Aggregate stats keep what the session earned and
// earned badges are never revoked; only history-based facts change.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteSessionCommand identifies the session to delete.
type DeleteSessionCommand struct {
	UserID    string
	SessionID string
}

// Validate validates the command.
func (c DeleteSessionCommand) Validate() error {
	if err := requireUserID("DeleteSession", c.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return shared.Validationf("command", "DeleteSession", "session_id is required")
	}
	return nil
}

// DeleteSessionResult is returned after the deletion is committed.
type DeleteSessionResult struct {
	SessionID string         `json:"session_id"`
	Events    []shared.Event `json:"-"`
}

// DeleteSessionHandler handles DeleteSessionCommand.
type DeleteSessionHandler struct {
	*Engine
}

// NewDeleteSessionHandler creates a new handler.
func NewDeleteSessionHandler(engine *Engine) *DeleteSessionHandler {
	return &DeleteSessionHandler{Engine: engine}
}

// Handle executes the command. A session owned by another user is reported
// as not found.
func (h *DeleteSessionHandler) Handle(ctx context.Context, cmd DeleteSessionCommand) (*DeleteSessionResult, error) {
	const op = "DeleteSession"

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	tx, err := h.inUserTx(ctx, op, cmd.UserID, func(ctx context.Context, tx *userTx) error {
		session, err := tx.uow.Sessions().Get(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if session.UserID != tx.userID {
			return shared.NewDomainError("practice", op, shared.ErrNotFound,
				fmt.Sprintf("session %s not found", cmd.SessionID))
		}
		if err := tx.uow.Sessions().Delete(ctx, session.ID); err != nil {
			return err
		}
		tx.emit(shared.NewEvent(shared.EventSessionDeleted, tx.userID, tx.now, map[string]any{
			"session_id": session.ID,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("session deleted", logger.UserID(cmd.UserID), logger.SessionID(cmd.SessionID))
	return &DeleteSessionResult{SessionID: cmd.SessionID, Events: tx.events}, nil
}
