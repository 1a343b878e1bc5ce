package command

import (
	"context"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE SHIELD COMMAND
// Spends gems on one streak shield.
// ══════════════════════════════════════════════════════════════════════════════

// PurchaseShieldCommand buys one shield. Cost zero means the configured cost.
type PurchaseShieldCommand struct {
	UserID string
	Cost   int
}

// PurchaseShieldResult carries the balances after the purchase.
type PurchaseShieldResult struct {
	NewShieldCount int            `json:"new_shield_count"`
	NewGemBalance  int            `json:"new_gem_balance"`
	Events         []shared.Event `json:"-"`
}

// PurchaseShieldHandler handles PurchaseShieldCommand.
type PurchaseShieldHandler struct {
	*Engine
}

// NewPurchaseShieldHandler creates a new handler.
func NewPurchaseShieldHandler(engine *Engine) *PurchaseShieldHandler {
	return &PurchaseShieldHandler{Engine: engine}
}

// Handle executes the command. Insufficient gems are reported before a full
// inventory.
func (h *PurchaseShieldHandler) Handle(ctx context.Context, cmd PurchaseShieldCommand) (*PurchaseShieldResult, error) {
	const op = "PurchaseShield"

	if err := requireUserID(op, cmd.UserID); err != nil {
		return nil, err
	}
	cost := cmd.Cost
	if cost == 0 {
		cost = h.policy.Shields.Cost
	}
	if cost < 0 {
		return nil, shared.Validationf("command", op, "cost must be positive, got %d", cost)
	}

	tx, err := h.inUserTx(ctx, op, cmd.UserID, func(ctx context.Context, tx *userTx) error {
		purchase, err := h.policy.Shields.Purchase(tx.stats.GemsBalance, tx.stats.StreakShieldCount, cost)
		if err != nil {
			return err
		}
		if err := tx.apply(ctx, stats.Delta{AddGems: -purchase.Cost, AddShields: 1}, "shield"); err != nil {
			return err
		}
		tx.emit(shared.NewEvent(shared.EventShieldPurchased, tx.userID, tx.now, map[string]any{
			"cost":        purchase.Cost,
			"shields":     tx.stats.StreakShieldCount,
			"gem_balance": tx.stats.GemsBalance,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("shield purchased",
		logger.UserID(cmd.UserID),
		logger.Gems(tx.stats.GemsBalance),
		logger.Int("shields", tx.stats.StreakShieldCount),
	)
	return &PurchaseShieldResult{
		NewShieldCount: tx.stats.StreakShieldCount,
		NewGemBalance:  tx.stats.GemsBalance,
		Events:         tx.events,
	}, nil
}
