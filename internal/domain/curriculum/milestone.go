package curriculum

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// Grade is a milestone submission grade.
type Grade string

const (
	GradePending Grade = "pending"
	GradePass    Grade = "pass"
	GradeRedo    Grade = "redo"
)

// ParseGrade accepts the final grades only.
func ParseGrade(s string) (Grade, error) {
	switch g := Grade(strings.ToLower(strings.TrimSpace(s))); g {
	case GradePass, GradeRedo:
		return g, nil
	default:
		return "", shared.Validationf("curriculum", "ParseGrade", "grade must be pass or redo, got %q", s)
	}
}

// MaxTeacherNotesLength bounds grader feedback.
const MaxTeacherNotesLength = 4000

// Submission is a milestone recording for a completed focus.
type Submission struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	FocusID      int        `json:"curriculum_focus_id"`
	YouTubeURL   string     `json:"youtube_url"`
	Grade        Grade      `json:"grade"`
	TeacherNotes string     `json:"teacher_notes,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	GradedOn     *time.Time `json:"graded_on,omitempty"`
}

var youtubeHosts = map[string]struct{}{
	"youtube.com":     {},
	"www.youtube.com": {},
	"m.youtube.com":   {},
	"youtu.be":        {},
	"www.youtu.be":    {},
}

// ValidateYouTubeURL accepts http(s) links on youtube.com or youtu.be.
func ValidateYouTubeURL(raw string) error {
	const op = "ValidateYouTubeURL"

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return shared.WrapError("curriculum", op, shared.ErrValidation, "malformed youtube_url", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return shared.Validationf("curriculum", op, "youtube_url must be an http(s) link")
	}
	if _, ok := youtubeHosts[strings.ToLower(u.Hostname())]; !ok {
		return shared.Validationf("curriculum", op, "youtube_url must point to youtube.com or youtu.be")
	}
	return nil
}

// CanSubmit checks milestone eligibility. latest is the user's most recent
// submission for the focus, or nil.
func CanSubmit(p *Progress, focusID int, latest *Submission) error {
	const op = "SubmitMilestone"

	if !p.FocusComplete(focusID) {
		return shared.NewDomainError("curriculum", op, shared.ErrInvalidState,
			fmt.Sprintf("focus %d has %d of %d keys complete", focusID, p.CompletedInFocus(focusID), SlotsPerFocus))
	}
	if latest != nil && latest.Grade != GradeRedo {
		return shared.NewDomainError("curriculum", op, shared.ErrAlreadyExists,
			fmt.Sprintf("focus %d already has a %s submission", focusID, latest.Grade))
	}
	return nil
}

// NewSubmission creates a pending submission.
func NewSubmission(userID string, focusID int, youtubeURL string, at time.Time) (*Submission, error) {
	if err := ValidateYouTubeURL(youtubeURL); err != nil {
		return nil, err
	}
	return &Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		FocusID:     focusID,
		YouTubeURL:  strings.TrimSpace(youtubeURL),
		Grade:       GradePending,
		SubmittedAt: at,
	}, nil
}

// ApplyGrade grades a pending submission once.
func (s *Submission) ApplyGrade(g Grade, notes string, at time.Time) error {
	const op = "GradeMilestone"

	if g != GradePass && g != GradeRedo {
		return shared.Validationf("curriculum", op, "grade must be pass or redo, got %q", g)
	}
	if len([]rune(notes)) > MaxTeacherNotesLength {
		return shared.Validationf("curriculum", op, "teacher notes exceed %d characters", MaxTeacherNotesLength)
	}
	if s.Grade != GradePending {
		return shared.NewDomainError("curriculum", op, shared.ErrAlreadyGraded,
			fmt.Sprintf("submission %s is already graded %s", s.ID, s.Grade))
	}
	s.Grade = g
	s.TeacherNotes = notes
	graded := at
	s.GradedOn = &graded
	return nil
}
