package progression

import (
	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// Sentiment bounds for a practice session.
const (
	MinSentiment = 1
	MaxSentiment = 5
)

// XPPolicy holds the XP formula constants:
//
//	xp = SessionBaseXP
//	   + duration_minutes * XPPerMinute
//	   + (sentiment - 1) * XPPerSentimentPoint
//	   + ImprovementBonusXP if improvement was detected
type XPPolicy struct {
	SessionBaseXP       int
	XPPerMinute         int
	XPPerSentimentPoint int
	ImprovementBonusXP  int
}

// DefaultXPPolicy returns the production formula.
func DefaultXPPolicy() XPPolicy {
	return XPPolicy{
		SessionBaseXP:       5,
		XPPerMinute:         1,
		XPPerSentimentPoint: 2,
		ImprovementBonusXP:  10,
	}
}

// Validate checks that the formula stays monotonic.
func (p XPPolicy) Validate() error {
	switch {
	case p.SessionBaseXP < 0:
		return shared.Validationf("progression", "XPPolicy", "session base xp must be >= 0")
	case p.XPPerMinute < 1:
		// A zero rate would make duration irrelevant.
		return shared.Validationf("progression", "XPPolicy", "xp per minute must be >= 1")
	case p.XPPerSentimentPoint < 0:
		return shared.Validationf("progression", "XPPolicy", "xp per sentiment point must be >= 0")
	case p.ImprovementBonusXP < 0:
		return shared.Validationf("progression", "XPPolicy", "improvement bonus must be >= 0")
	}
	return nil
}

// ComputeXP returns the XP earned by one session. Out-of-range inputs are
// clamped; callers validate sessions before they get here.
func (p XPPolicy) ComputeXP(durationMinutes, sentimentScore int, improvementDetected bool) int {
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	sentimentScore = min(max(sentimentScore, MinSentiment), MaxSentiment)

	xp := p.SessionBaseXP +
		durationMinutes*p.XPPerMinute +
		(sentimentScore-MinSentiment)*p.XPPerSentimentPoint
	if improvementDetected {
		xp += p.ImprovementBonusXP
	}
	return xp
}
