// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/progression"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/pkg/logger"
	"github.com/alem-hub/practice-hub/pkg/retry"
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// Shared collaborators of every command: the stats store, the rule engines and
// the unit-of-work runner that applies deltas and runs the badge pass.
// ══════════════════════════════════════════════════════════════════════════════

// FeatureGate answers per-user feature flag checks. config.FeatureFlags
// implements it.
type FeatureGate interface {
	Enabled(feature, userID string) bool
}

type allFeatures struct{}

func (allFeatures) Enabled(string, string) bool { return true }

// Policy is the set of rule numbers commands apply.
type Policy struct {
	XP       progression.XPPolicy
	Levels   progression.LevelTable
	Shields  progression.ShieldPolicy
	Stats    stats.Limits
	Sessions practice.Limits
	History  practice.HistoryQuery

	StepXP        int
	StepGems      int
	MilestoneXP   int
	MilestoneGems int

	// MaxAttempts bounds retries of a unit of work on write conflicts.
	MaxAttempts int
}

// DefaultPolicy mirrors config.DefaultPolicy in the given zone.
func DefaultPolicy(zone timeutil.Zone) Policy {
	return PolicyFromConfig(config.DefaultPolicy(), zone)
}

// PolicyFromConfig converts validated configuration into a Policy. The level
// table falls back to the default one when the configuration cannot build it;
// config.Validate reports that case at startup.
func PolicyFromConfig(p config.PolicyConfig, zone timeutil.Zone) Policy {
	levels, err := p.LevelTable()
	if err != nil {
		levels = progression.DefaultLevelTable()
	}
	return Policy{
		XP:            p.XPPolicy(),
		Levels:        levels,
		Shields:       p.ShieldPolicy(),
		Stats:         p.StatsLimits(),
		Sessions:      p.SessionLimits(),
		History:       p.HistoryQuery(zone),
		StepXP:        p.StepXP,
		StepGems:      p.StepGems,
		MilestoneXP:   p.MilestoneXP,
		MilestoneGems: p.MilestoneGems,
		MaxAttempts:   p.MaxRetryAttempts,
	}
}

// Engine is embedded by every command handler.
type Engine struct {
	store      stats.Store
	publisher  shared.EventPublisher
	evaluator  *badge.Evaluator
	curriculum *curriculum.Machine
	features   FeatureGate
	policy     Policy
	log        *logger.Logger
	now        func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithFeatures sets the feature gate. Without it every feature is on.
func WithFeatures(f FeatureGate) EngineOption {
	return func(e *Engine) {
		if f != nil {
			e.features = f
		}
	}
}

// WithPublisher sets where committed events go.
func WithPublisher(p shared.EventPublisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates the shared command engine.
func NewEngine(
	store stats.Store,
	evaluator *badge.Evaluator,
	machine *curriculum.Machine,
	policy Policy,
	opts ...EngineOption,
) *Engine {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	e := &Engine{
		store:      store,
		evaluator:  evaluator,
		curriculum: machine,
		features:   allFeatures{},
		policy:     policy,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logger.Component("command"))
	return e
}

// Policy returns the rule numbers in effect.
func (e *Engine) Policy() Policy { return e.policy }

// ─────────────────────────────────────────────────────────────────────────────
// Unit of work runner
// ─────────────────────────────────────────────────────────────────────────────

// userTx is the state of one attempt at a per-user unit of work.
type userTx struct {
	engine *Engine
	uow    stats.UnitOfWork
	userID string
	now    time.Time

	start  stats.UserStats
	stats  stats.UserStats
	events []shared.Event
	badges []string
}

// inUserTx locks userID and runs fn inside one unit of work. Write conflicts
// restart the whole unit from a fresh lock. Events collected by fn are
// published only after a successful commit.
func (e *Engine) inUserTx(ctx context.Context, op, userID string, fn func(ctx context.Context, tx *userTx) error) (*userTx, error) {
	retrier := retry.ConflictRetrier(e.policy.MaxAttempts, shared.IsRetryable)

	tx, err := retry.Run(ctx, retrier, func(ctx context.Context) (*userTx, error) {
		return e.attempt(ctx, userID, fn)
	})
	if err != nil {
		log := e.log.With(logger.Operation(op), logger.UserID(userID), logger.Err(err))
		switch {
		case shared.IsValidation(err), shared.IsConflict(err), shared.IsNotFound(err):
			log.Debug("command rejected")
		case errors.Is(err, shared.ErrConcurrentModification):
			log.Warn("command gave up after write conflicts")
		default:
			log.Error("command failed")
		}
		return nil, err
	}

	if pubErr := shared.PublishAll(e.publisher, tx.events); pubErr != nil {
		e.log.Warn("failed to publish events",
			logger.Operation(op), logger.UserID(userID), logger.Err(pubErr))
	}
	return tx, nil
}

func (e *Engine) attempt(ctx context.Context, userID string, fn func(ctx context.Context, tx *userTx) error) (tx *userTx, err error) {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = uow.Rollback(ctx)
		}
	}()

	current, err := uow.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	tx = &userTx{
		engine: e,
		uow:    uow,
		userID: userID,
		now:    e.now(),
		start:  current,
		stats:  current,
	}
	if err = fn(ctx, tx); err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (t *userTx) emit(events ...shared.Event) {
	t.events = append(t.events, events...)
}

// apply writes delta for the locked user. XP gains raise the level when the
// new total crosses a threshold; levels never go down.
func (t *userTx) apply(ctx context.Context, delta stats.Delta, source string) error {
	if delta.IsZero() {
		return nil
	}
	oldLevel := t.stats.CurrentLevel
	if delta.AddXP > 0 {
		if lvl := t.engine.policy.Levels.LevelFor(t.stats.TotalXP + delta.AddXP); lvl > oldLevel {
			delta.SetLevel = &lvl
		}
	}

	next, err := t.uow.ApplyDelta(ctx, t.userID, delta)
	if err != nil {
		return err
	}
	t.stats = next

	if delta.AddXP > 0 {
		t.emit(shared.NewEvent(shared.EventXPGained, t.userID, t.now, map[string]any{
			"amount":   delta.AddXP,
			"source":   source,
			"total_xp": next.TotalXP,
		}))
	}
	if next.CurrentLevel > oldLevel {
		t.emit(shared.NewLevelUpEvent(t.userID, oldLevel, next.CurrentLevel, next.TotalXP, t.now))
	}
	return nil
}

// leveledUp reports whether the unit raised the level so far.
func (t *userTx) leveledUp() bool { return t.stats.CurrentLevel > t.start.CurrentLevel }

// badgePass awards every badge whose criteria hold, in catalog order, until
// none is left. Each award's rewards are applied before the next check so a
// reward can unlock a later badge.
func (t *userTx) badgePass(ctx context.Context) error {
	if t.engine.evaluator == nil || !t.engine.features.Enabled(config.FeatureBadges, t.userID) {
		return nil
	}

	earned, err := t.uow.Badges().Earned(ctx, t.userID)
	if err != nil {
		return fmt.Errorf("failed to load earned badges: %w", err)
	}
	history, err := t.uow.Sessions().History(ctx, t.userID, t.engine.policy.History)
	if err != nil {
		return fmt.Errorf("failed to load session history: %w", err)
	}

	for {
		next, ok := t.engine.evaluator.Next(t.facts(history), earned)
		if !ok {
			return nil
		}
		earned[next.Key] = t.now

		err := t.uow.Badges().Award(ctx, badge.UserBadge{UserID: t.userID, BadgeKey: next.Key, EarnedAt: t.now})
		if shared.IsAlreadyExists(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to award badge %s: %w", next.Key, err)
		}

		delta := stats.Delta{AddXP: next.XPReward, AddGems: next.GemReward, AddBadges: 1}
		if err := t.apply(ctx, delta, "badge:"+next.Key); err != nil {
			return err
		}
		t.badges = append(t.badges, next.Key)
		t.emit(shared.NewBadgeEarnedEvent(t.userID, next.Key, next.XPReward, next.GemReward, t.now))
	}
}

func (t *userTx) facts(h practice.History) badge.Facts {
	gap, hasGap := h.GapDays(t.engine.policy.History.Zone)
	return badge.Facts{
		TotalSessions: t.stats.TotalSessions,
		TotalXP:       t.stats.TotalXP,
		CurrentStreak: t.stats.CurrentStreak,
		LongSessions:  h.LongSessions,
		EarlySessions: h.EarlySessions,
		LateSessions:  h.LateSessions,
		GapDays:       gap,
		HasGap:        hasGap,
	}
}

// lookup runs fn in a unit of work that takes no lock and is always rolled
// back. It serves reads that must see the same storage as writes.
func (e *Engine) lookup(ctx context.Context, fn func(uow stats.UnitOfWork) error) error {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()
	return fn(uow)
}

func requireUserID(op, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return shared.Validationf("command", op, "user_id is required")
	}
	return nil
}
