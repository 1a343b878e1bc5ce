package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event.
type EventType string

const (
	// Practice and stats events
	EventSessionRecorded EventType = "session.recorded"
	EventSessionDeleted  EventType = "session.deleted"
	EventXPGained        EventType = "xp.gained"
	EventLevelUp         EventType = "level.up"
	EventStreakUpdated   EventType = "streak.updated"
	EventStreakBroken    EventType = "streak.broken"
	EventShieldConsumed  EventType = "shield.consumed"
	EventShieldPurchased EventType = "shield.purchased"
	EventBadgeEarned     EventType = "badge.earned"

	// Curriculum events
	EventStepCompleted      EventType = "curriculum.step_completed"
	EventFocusCompleted     EventType = "curriculum.focus_completed"
	EventProgressRepaired   EventType = "curriculum.progress_repaired"
	EventMilestoneSubmitted EventType = "milestone.submitted"
	EventMilestoneGraded    EventType = "milestone.graded"

	// Leaderboard events
	EventLeaderboardVisibility EventType = "leaderboard.visibility_changed"
	EventLeaderboardRefreshed  EventType = "leaderboard.refreshed"
)

// Event is implemented by every domain event.
type Event interface {
	EventID() string
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is the user id for every per-user event.
	AggregateID() string
	Payload() map[string]any
}

// BaseEvent holds the fields every event shares.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent stamps a new event with an id and the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation id for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ─────────────────────────────────────────────────────────────────────────────
// Generic event
// ─────────────────────────────────────────────────────────────────────────────

// DomainEvent is a BaseEvent with a free-form payload. Most engine events
// only carry a handful of numbers, so one concrete type covers them.
type DomainEvent struct {
	BaseEvent
	Data map[string]any `json:"data"`
}

// Payload implements Event.
func (e DomainEvent) Payload() map[string]any { return e.Data }

// NewEvent creates a DomainEvent.
func NewEvent(eventType EventType, userID string, at time.Time, data map[string]any) DomainEvent {
	if data == nil {
		data = map[string]any{}
	}
	return DomainEvent{BaseEvent: NewBaseEvent(eventType, userID, at), Data: data}
}

// ─────────────────────────────────────────────────────────────────────────────
// Typed events that handlers inspect
// ─────────────────────────────────────────────────────────────────────────────

// LevelUpEvent is emitted when a user's level increases.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
	TotalXP  int `json:"total_xp"`
}

func (e LevelUpEvent) Payload() map[string]any {
	return map[string]any{"old_level": e.OldLevel, "new_level": e.NewLevel, "total_xp": e.TotalXP}
}

// NewLevelUpEvent creates a LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// BadgeEarnedEvent is emitted once per (user, badge).
type BadgeEarnedEvent struct {
	BaseEvent
	BadgeKey  string `json:"badge_key"`
	XPReward  int    `json:"xp_reward"`
	GemReward int    `json:"gem_reward"`
}

func (e BadgeEarnedEvent) Payload() map[string]any {
	return map[string]any{"badge_key": e.BadgeKey, "xp_reward": e.XPReward, "gem_reward": e.GemReward}
}

// NewBadgeEarnedEvent creates a BadgeEarnedEvent.
func NewBadgeEarnedEvent(userID, badgeKey string, xpReward, gemReward int, at time.Time) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: NewBaseEvent(EventBadgeEarned, userID, at),
		BadgeKey:  badgeKey,
		XPReward:  xpReward,
		GemReward: gemReward,
	}
}

// StreakBrokenEvent is emitted when a gap could not be covered by shields.
type StreakBrokenEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
	DaysMissed     int `json:"days_missed"`
	ShieldsHeld    int `json:"shields_held"`
}

func (e StreakBrokenEvent) Payload() map[string]any {
	return map[string]any{
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
		"shields_held":    e.ShieldsHeld,
	}
}

// NewStreakBrokenEvent creates a StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak, daysMissed, shieldsHeld int, at time.Time) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID, at),
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
		ShieldsHeld:    shieldsHeld,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Bus contracts
// ─────────────────────────────────────────────────────────────────────────────

// EventHandler handles one event.
type EventHandler func(event Event) error

// EventPublisher publishes events to subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber registers handlers.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// PublishAll publishes events in order and returns the first error.
// Every event is attempted even if an earlier one fails.
func PublishAll(p EventPublisher, events []Event) error {
	if p == nil {
		return nil
	}
	var first error
	for _, e := range events {
		if err := p.Publish(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
