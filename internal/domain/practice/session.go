// Package practice holds logged practice sessions and the history facts that
// badge criteria read from them.
package practice

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// Session input limits.
const (
	MinSentiment = 1
	MaxSentiment = 5

	DefaultMaxDurationMinutes = 24 * 60
	DefaultMaxNotesLength     = 2000
	MaxItemIDLength           = 128
)

// Limits bounds user-supplied session fields.
type Limits struct {
	MaxDurationMinutes int
	MaxNotesLength     int
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDurationMinutes: DefaultMaxDurationMinutes,
		MaxNotesLength:     DefaultMaxNotesLength,
	}
}

// Session is one logged practice session. Sessions are append-only; the only
// mutation is deletion.
type Session struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	ItemID              string    `json:"item_id"`
	DurationMinutes     int       `json:"duration_minutes"`
	SentimentScore      int       `json:"sentiment_score"`
	ImprovementDetected bool      `json:"improvement_detected"`
	Notes               string    `json:"notes"`
	XPEarned            int       `json:"xp_earned"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewSession validates the input and returns a session with a fresh id.
// XPEarned is filled in by the caller once XP is computed.
func NewSession(
	userID, itemID string,
	durationMinutes, sentimentScore int,
	improvementDetected bool,
	notes string,
	createdAt time.Time,
	limits Limits,
) (*Session, error) {
	s := &Session{
		ID:                  uuid.NewString(),
		UserID:              strings.TrimSpace(userID),
		ItemID:              strings.TrimSpace(itemID),
		DurationMinutes:     durationMinutes,
		SentimentScore:      sentimentScore,
		ImprovementDetected: improvementDetected,
		Notes:               notes,
		CreatedAt:           createdAt,
	}
	if err := s.Validate(limits); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the session fields against limits.
func (s *Session) Validate(limits Limits) error {
	const op = "Validate"

	if s.UserID == "" {
		return shared.NewDomainError("practice", op, shared.ErrInvalidID, "user_id is required")
	}
	if s.ItemID == "" {
		return shared.Validationf("practice", op, "item_id is required")
	}
	if len(s.ItemID) > MaxItemIDLength {
		return shared.Validationf("practice", op, "item_id exceeds %d characters", MaxItemIDLength)
	}
	if s.DurationMinutes <= 0 {
		return shared.NewDomainError("practice", op, shared.ErrValueOutOfRange, "duration_minutes must be > 0")
	}
	if limits.MaxDurationMinutes > 0 && s.DurationMinutes > limits.MaxDurationMinutes {
		return shared.NewDomainError("practice", op, shared.ErrValueOutOfRange,
			"duration_minutes exceeds the maximum session length")
	}
	if s.SentimentScore < MinSentiment || s.SentimentScore > MaxSentiment {
		return shared.NewDomainError("practice", op, shared.ErrValueOutOfRange, "sentiment_score must be within 1..5")
	}
	if limits.MaxNotesLength > 0 && utf8.RuneCountInString(s.Notes) > limits.MaxNotesLength {
		return shared.Validationf("practice", op, "notes exceed %d characters", limits.MaxNotesLength)
	}
	if s.CreatedAt.IsZero() {
		return shared.Validationf("practice", op, "created_at is required")
	}
	return nil
}

// IsLong reports whether the session counts toward long-session badges.
func (s *Session) IsLong(thresholdMinutes int) bool {
	return s.DurationMinutes >= thresholdMinutes
}
