package command

import (
	"context"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/progression"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/pkg/logger"
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SESSION COMMAND
// Logs a practice session and applies everything it triggers: XP, level,
// streak and shields, then the badge pass. One unit of work covers it all.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionCommand contains the data of one practice session.
type RecordSessionCommand struct {
	UserID              string
	ItemID              string
	DurationMinutes     int
	SentimentScore      int
	ImprovementDetected bool
	Notes               string
}

// LevelUp is reported when the session raised the level.
type LevelUp struct {
	LeveledUp bool `json:"leveled_up"`
	NewLevel  int  `json:"new_level"`
}

// StreakUpdate describes the streak effect of a session. It is omitted when
// the session falls on the last practice day.
type StreakUpdate struct {
	StreakUpdated   bool `json:"streak_updated"`
	StreakContinued bool `json:"streak_continued"`
	StreakBroken    bool `json:"streak_broken"`
	CurrentStreak   int  `json:"current_streak"`
	ShieldsConsumed int  `json:"shields_consumed"`
}

// RecordSessionResult is returned after the session is committed.
type RecordSessionResult struct {
	Session           *practice.Session `json:"session"`
	XPEarned          int               `json:"xp_earned"`
	LevelUp           *LevelUp          `json:"level_up,omitempty"`
	StreakUpdate      *StreakUpdate     `json:"streak_update,omitempty"`
	BadgesNewlyEarned []string          `json:"badges_newly_earned"`
	Stats             stats.UserStats   `json:"stats"`

	Events []shared.Event `json:"-"`
}

// RecordSessionHandler handles RecordSessionCommand.
type RecordSessionHandler struct {
	*Engine
}

// NewRecordSessionHandler creates a new handler.
func NewRecordSessionHandler(engine *Engine) *RecordSessionHandler {
	return &RecordSessionHandler{Engine: engine}
}

// Handle executes the command.
func (h *RecordSessionHandler) Handle(ctx context.Context, cmd RecordSessionCommand) (*RecordSessionResult, error) {
	const op = "RecordSession"

	if err := requireUserID(op, cmd.UserID); err != nil {
		return nil, err
	}
	// Sessions are stamped with server time; streak days and time-of-day
	// badges read it.
	session, err := practice.NewSession(
		cmd.UserID, cmd.ItemID,
		cmd.DurationMinutes, cmd.SentimentScore, cmd.ImprovementDetected,
		cmd.Notes, h.now(), h.policy.Sessions,
	)
	if err != nil {
		return nil, err
	}
	session.XPEarned = h.policy.XP.ComputeXP(session.DurationMinutes, session.SentimentScore, session.ImprovementDetected)

	var (
		streak      progression.StreakOutcome
		streakMoved bool
	)
	tx, err := h.inUserTx(ctx, op, session.UserID, func(ctx context.Context, tx *userTx) error {
		if err := tx.uow.Sessions().Create(ctx, session); err != nil {
			return err
		}

		engine := progression.NewStreakEngine(h.features.Enabled(config.FeatureStreakShields, tx.userID))
		streak = engine.Advance(progression.StreakState{
			Current:          tx.stats.CurrentStreak,
			Longest:          tx.stats.LongestStreak,
			Shields:          tx.stats.StreakShieldCount,
			LastPracticeDate: tx.stats.LastPracticeDate,
		}, h.policy.History.Zone.DateOf(session.CreatedAt))

		delta := stats.Delta{
			AddXP:       session.XPEarned,
			AddSessions: 1,
			AddMinutes:  session.DurationMinutes,
			AddShields:  -streak.ShieldsConsumed,
		}
		streakMoved = dateMoved(tx.stats.LastPracticeDate, streak.State.LastPracticeDate)
		if streakMoved {
			delta.Streak = &stats.StreakChange{
				Current:          streak.State.Current,
				Longest:          streak.State.Longest,
				LastPracticeDate: *streak.State.LastPracticeDate,
			}
		}
		if err := tx.apply(ctx, delta, "session"); err != nil {
			return err
		}

		tx.emit(shared.NewEvent(shared.EventSessionRecorded, tx.userID, tx.now, map[string]any{
			"session_id":       session.ID,
			"item_id":          session.ItemID,
			"duration_minutes": session.DurationMinutes,
			"xp_earned":        session.XPEarned,
		}))
		if streak.Updated {
			tx.emit(shared.NewEvent(shared.EventStreakUpdated, tx.userID, tx.now, map[string]any{
				"current_streak": streak.State.Current,
				"longest_streak": streak.State.Longest,
				"continued":      streak.Continued,
			}))
		}
		if streak.ShieldsConsumed > 0 {
			tx.emit(shared.NewEvent(shared.EventShieldConsumed, tx.userID, tx.now, map[string]any{
				"consumed":  streak.ShieldsConsumed,
				"remaining": tx.stats.StreakShieldCount,
			}))
		}
		if streak.Broken {
			tx.emit(shared.NewStreakBrokenEvent(tx.userID, streak.PreviousStreak, streak.DaysMissed, tx.start.StreakShieldCount, tx.now))
		}

		return tx.badgePass(ctx)
	})
	if err != nil {
		return nil, err
	}

	result := &RecordSessionResult{
		Session:           session,
		XPEarned:          session.XPEarned,
		BadgesNewlyEarned: nonNil(tx.badges),
		Stats:             tx.stats,
		Events:            tx.events,
	}
	if streakMoved {
		result.StreakUpdate = &StreakUpdate{
			StreakUpdated:   streak.Updated,
			StreakContinued: streak.Continued,
			StreakBroken:    streak.Broken,
			CurrentStreak:   tx.stats.CurrentStreak,
			ShieldsConsumed: streak.ShieldsConsumed,
		}
	}
	if tx.leveledUp() {
		result.LevelUp = &LevelUp{LeveledUp: true, NewLevel: tx.stats.CurrentLevel}
	}

	h.log.Info("session recorded",
		logger.UserID(session.UserID),
		logger.SessionID(session.ID),
		logger.XP(session.XPEarned),
		logger.Int("streak", tx.stats.CurrentStreak),
		logger.Int("badges", len(tx.badges)),
	)
	return result, nil
}

// dateMoved reports whether the session advanced the last practice day.
// Same-day and back-dated sessions leave it where it was.
func dateMoved(before, after *timeutil.Date) bool {
	if after == nil {
		return false
	}
	return before == nil || !before.Equal(*after)
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
