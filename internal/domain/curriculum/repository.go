package curriculum

import (
	"context"
	"time"
)

// Repository stores curriculum progress and milestone submissions.
// Implementations bound to a unit of work see that unit's writes, and writes
// for a user are only valid after the unit locked that user.
type Repository interface {
	// Progress loads the user's completed slots and stored position.
	Progress(ctx context.Context, userID string) (*Progress, error)

	// CompleteSlot fills a slot. An already filled slot returns
	// shared.ErrStepAlreadyComplete.
	CompleteSlot(ctx context.Context, userID string, ref SlotRef, at time.Time) error

	// ClearSlots empties the given slots.
	ClearSlots(ctx context.Context, userID string, refs []SlotRef) error

	// SetPosition stores the assignment position; nil clears it.
	SetPosition(ctx context.Context, userID string, pos *SlotRef) error

	// CreateSubmission stores a new milestone submission.
	CreateSubmission(ctx context.Context, s *Submission) error

	// Submission returns a submission by id or shared.ErrNotFound.
	Submission(ctx context.Context, id string) (*Submission, error)

	// LatestSubmission returns the user's newest submission for a focus, or
	// nil when there is none.
	LatestSubmission(ctx context.Context, userID string, focusID int) (*Submission, error)

	// UpdateSubmission stores a graded submission.
	UpdateSubmission(ctx context.Context, s *Submission) error
}
