package badge

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// Badge is a catalog entry.
type Badge struct {
	Key         string
	Name        string
	Description string
	Category    string
	Criteria    Criteria
	XPReward    int
	GemReward   int
}

// Validate checks a catalog entry.
func (b Badge) Validate() error {
	const op = "Badge.Validate"

	switch {
	case strings.TrimSpace(b.Key) == "":
		return shared.Validationf("badge", op, "badge_key is required")
	case b.Criteria == nil:
		return shared.Validationf("badge", op, "badge %q has no criteria", b.Key)
	case b.XPReward < 0:
		return shared.Validationf("badge", op, "badge %q: xp_reward must be >= 0", b.Key)
	case b.GemReward < 0:
		return shared.Validationf("badge", op, "badge %q: gem_reward must be >= 0", b.Key)
	}
	return nil
}

// Catalog is the static, ordered badge list.
type Catalog struct {
	badges []Badge
	byKey  map[string]int
}

// NewCatalog validates badges and rejects duplicate keys. Catalog order is
// evaluation order.
func NewCatalog(badges []Badge) (*Catalog, error) {
	c := &Catalog{
		badges: make([]Badge, 0, len(badges)),
		byKey:  make(map[string]int, len(badges)),
	}
	for _, b := range badges {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byKey[b.Key]; dup {
			return nil, shared.NewDomainError("badge", "NewCatalog", shared.ErrAlreadyExists,
				"duplicate badge_key "+b.Key)
		}
		c.byKey[b.Key] = len(c.badges)
		c.badges = append(c.badges, b)
	}
	return c, nil
}

// All returns the badges in catalog order.
func (c *Catalog) All() []Badge {
	out := make([]Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

// Get returns a badge by key.
func (c *Catalog) Get(key string) (Badge, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Badge{}, false
	}
	return c.badges[i], true
}

func (c *Catalog) Len() int { return len(c.badges) }

// UserBadge records that a user earned a badge. There is at most one per
// (user, badge key).
type UserBadge struct {
	UserID   string    `json:"user_id"`
	BadgeKey string    `json:"badge_key"`
	EarnedAt time.Time `json:"earned_at"`
}

// Repository stores earned badges.
type Repository interface {
	// Earned returns the user's earned badge keys with their earn times.
	Earned(ctx context.Context, userID string) (map[string]time.Time, error)

	// Award stores a UserBadge. A second award of the same pair returns
	// shared.ErrAlreadyExists.
	Award(ctx context.Context, ub UserBadge) error

	// ListByUser returns the user's badges ordered by earn time.
	ListByUser(ctx context.Context, userID string) ([]UserBadge, error)
}
