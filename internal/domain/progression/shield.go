package progression

import (
	"fmt"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// Shield economy defaults.
const (
	DefaultShieldCost = 50
	DefaultShieldCap  = 3
)

// ShieldPolicy prices streak shields.
type ShieldPolicy struct {
	Cost int
	Cap  int
	// EnforceCost rejects purchases whose cost differs from Cost.
	EnforceCost bool
}

// DefaultShieldPolicy returns cost 50, cap 3, caller-supplied cost accepted.
func DefaultShieldPolicy() ShieldPolicy {
	return ShieldPolicy{Cost: DefaultShieldCost, Cap: DefaultShieldCap}
}

// Validate checks the policy numbers.
func (p ShieldPolicy) Validate() error {
	if p.Cost < 1 {
		return shared.Validationf("progression", "ShieldPolicy", "shield cost must be >= 1")
	}
	if p.Cap < 0 || p.Cap > DefaultShieldCap {
		return shared.Validationf("progression", "ShieldPolicy", "shield cap must be within 0..%d", DefaultShieldCap)
	}
	return nil
}

// ShieldPurchase is the accepted outcome of a purchase.
type ShieldPurchase struct {
	Cost       int
	NewGems    int
	NewShields int
}

// Purchase checks a purchase of one shield for cost against the current
// balances. The gem check runs before the cap check.
func (p ShieldPolicy) Purchase(gems, shields, cost int) (ShieldPurchase, error) {
	const op = "PurchaseShield"

	if cost <= 0 {
		return ShieldPurchase{}, shared.Validationf("progression", op, "cost must be > 0, got %d", cost)
	}
	if p.EnforceCost && cost != p.Cost {
		return ShieldPurchase{}, shared.Validationf("progression", op, "cost must be %d, got %d", p.Cost, cost)
	}
	if gems < cost {
		return ShieldPurchase{}, shared.NewDomainError("progression", op, shared.ErrInsufficientGems,
			fmt.Sprintf("balance %d is below cost %d", gems, cost))
	}
	if shields >= p.Cap {
		return ShieldPurchase{}, shared.NewDomainError("progression", op, shared.ErrShieldCapExceeded,
			fmt.Sprintf("already holding %d of %d shields", shields, p.Cap))
	}
	return ShieldPurchase{Cost: cost, NewGems: gems - cost, NewShields: shields + 1}, nil
}
