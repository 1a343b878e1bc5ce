package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIX PROGRESS COMMAND
// Reconciles a user's stored curriculum position with the canonical one.
// Completed slots at or after the canonical slot are cleared so the user
// redoes them in order. Running it twice changes nothing the second time.
// ══════════════════════════════════════════════════════════════════════════════

// FixProgressCommand names the user to repair.
type FixProgressCommand struct {
	UserID string
}

// FixProgressResult reports what changed.
type FixProgressResult struct {
	Fixed     bool                 `json:"fixed"`
	FixReason string               `json:"fix_reason,omitempty"`
	OldFocus  *int                 `json:"old_focus"`
	OldKey    string               `json:"old_key,omitempty"`
	NewFocus  *int                 `json:"new_focus"`
	NewKey    string               `json:"new_key,omitempty"`
	Cleared   []curriculum.SlotRef `json:"-"`
	Message   string               `json:"message"`

	Events []shared.Event `json:"-"`
}

// FixProgressHandler handles FixProgressCommand.
type FixProgressHandler struct {
	*Engine
}

// NewFixProgressHandler creates a new handler.
func NewFixProgressHandler(engine *Engine) *FixProgressHandler {
	return &FixProgressHandler{Engine: engine}
}

// Handle executes the command.
func (h *FixProgressHandler) Handle(ctx context.Context, cmd FixProgressCommand) (*FixProgressResult, error) {
	const op = "FixProgress"

	if err := requireUserID(op, cmd.UserID); err != nil {
		return nil, err
	}

	var plan curriculum.RepairPlan
	tx, err := h.inUserTx(ctx, op, cmd.UserID, func(ctx context.Context, tx *userTx) error {
		repo := tx.uow.Curriculum()
		progress, err := repo.Progress(ctx, tx.userID)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		plan = h.curriculum.Repair(progress)
		if !plan.Fixed {
			return nil
		}
		if err := repo.ClearSlots(ctx, tx.userID, plan.Cleared); err != nil {
			return fmt.Errorf("failed to clear slots: %w", err)
		}
		if err := repo.SetPosition(ctx, tx.userID, plan.New); err != nil {
			return fmt.Errorf("failed to store position: %w", err)
		}
		tx.emit(shared.NewEvent(shared.EventProgressRepaired, tx.userID, tx.now, map[string]any{
			"reason":  string(plan.Reason),
			"cleared": len(plan.Cleared),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &FixProgressResult{
		Fixed:     plan.Fixed,
		FixReason: string(plan.Reason),
		Cleared:   plan.Cleared,
		Events:    tx.events,
	}
	if plan.Old != nil {
		f := plan.Old.FocusID
		result.OldFocus, result.OldKey = &f, plan.Old.Key.String()
	}
	if plan.New != nil {
		f := plan.New.FocusID
		result.NewFocus, result.NewKey = &f, plan.New.Key.String()
	}

	if plan.Fixed {
		result.Message = fmt.Sprintf("Progress repaired (%s): continue with %s; %d slots cleared",
			plan.Reason, plan.New, len(plan.Cleared))
		h.log.Info("curriculum progress repaired",
			logger.UserID(cmd.UserID),
			logger.String("reason", string(plan.Reason)),
			logger.Int("cleared", len(plan.Cleared)),
		)
	} else {
		result.Message = "Progress is already in order"
	}
	return result, nil
}
