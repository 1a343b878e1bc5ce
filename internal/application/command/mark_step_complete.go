package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK STEP COMPLETE COMMAND
// Fills one curriculum slot, advances the stored position and pays the step
// reward.
// ══════════════════════════════════════════════════════════════════════════════

// MarkStepCompleteCommand identifies the slot to fill.
type MarkStepCompleteCommand struct {
	UserID  string
	StepID  curriculum.StepID
	FocusID int
}

// MarkStepCompleteResult is returned after the completion is committed.
type MarkStepCompleteResult struct {
	Slot              curriculum.SlotRef     `json:"-"`
	XPEarned          int                    `json:"xp_earned"`
	GemsEarned        int                    `json:"gems_earned"`
	AllKeysComplete   bool                   `json:"all_keys_complete"`
	NextAssignment    *curriculum.Assignment `json:"next_assignment"`
	BadgesNewlyEarned []string               `json:"badges_newly_earned"`
	Stats             stats.UserStats        `json:"stats"`

	Events []shared.Event `json:"-"`
}

// MarkStepCompleteHandler handles MarkStepCompleteCommand.
type MarkStepCompleteHandler struct {
	*Engine
}

// NewMarkStepCompleteHandler creates a new handler.
func NewMarkStepCompleteHandler(engine *Engine) *MarkStepCompleteHandler {
	return &MarkStepCompleteHandler{Engine: engine}
}

// Handle executes the command.
func (h *MarkStepCompleteHandler) Handle(ctx context.Context, cmd MarkStepCompleteCommand) (*MarkStepCompleteResult, error) {
	const op = "MarkStepComplete"

	if err := requireUserID(op, cmd.UserID); err != nil {
		return nil, err
	}
	ref, err := cmd.StepID.Resolve(cmd.FocusID)
	if err != nil {
		return nil, err
	}
	if _, ok := h.curriculum.Catalog().Focus(cmd.FocusID); !ok {
		return nil, shared.NewDomainError("curriculum", op, shared.ErrNotFound,
			fmt.Sprintf("focus %d not found", cmd.FocusID))
	}

	var (
		outcome curriculum.CompleteOutcome
		next    *curriculum.Assignment
		xp      int
		gems    int
	)
	tx, err := h.inUserTx(ctx, op, cmd.UserID, func(ctx context.Context, tx *userTx) error {
		repo := tx.uow.Curriculum()
		progress, err := repo.Progress(ctx, tx.userID)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		outcome, err = h.curriculum.Complete(progress, cmd.StepID, cmd.FocusID, tx.now)
		if err != nil {
			return err
		}
		if err := repo.CompleteSlot(ctx, tx.userID, outcome.Slot, tx.now); err != nil {
			return err
		}
		if err := repo.SetPosition(ctx, tx.userID, outcome.NextPosition); err != nil {
			return fmt.Errorf("failed to store position: %w", err)
		}

		xp, gems = 0, 0
		if h.features.Enabled(config.FeatureCurriculumRewards, tx.userID) {
			xp, gems = h.policy.StepXP, h.policy.StepGems
			if err := tx.apply(ctx, stats.Delta{AddXP: xp, AddGems: gems}, "curriculum_step"); err != nil {
				return err
			}
		}

		tx.emit(shared.NewEvent(shared.EventStepCompleted, tx.userID, tx.now, map[string]any{
			"focus_id": ref.FocusID,
			"key":      ref.Key.String(),
			"step_id":  int64(ref.StepID()),
		}))
		if outcome.FocusComplete {
			tx.emit(shared.NewEvent(shared.EventFocusCompleted, tx.userID, tx.now, map[string]any{
				"focus_id": ref.FocusID,
			}))
		}

		next, err = h.curriculum.CurrentAssignment(progress, nil)
		if err != nil {
			return err
		}
		return tx.badgePass(ctx)
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("curriculum step completed",
		logger.UserID(cmd.UserID),
		logger.FocusID(ref.FocusID),
		logger.String("key", ref.Key.String()),
		logger.Bool("focus_complete", outcome.FocusComplete),
	)
	return &MarkStepCompleteResult{
		Slot:              outcome.Slot,
		XPEarned:          xp,
		GemsEarned:        gems,
		AllKeysComplete:   outcome.FocusComplete,
		NextAssignment:    next,
		BadgesNewlyEarned: nonNil(tx.badges),
		Stats:             tx.stats,
		Events:            tx.events,
	}, nil
}
