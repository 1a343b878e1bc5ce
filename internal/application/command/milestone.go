package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE COMMANDS
// A finished focus can be submitted as a recording for grading. A passing
// grade pays the milestone reward; a redo grade allows another submission.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitMilestoneCommand submits a recording for a completed focus.
type SubmitMilestoneCommand struct {
	UserID     string
	FocusID    int
	YouTubeURL string
}

// SubmitMilestoneResult carries the stored submission.
type SubmitMilestoneResult struct {
	Submission *curriculum.Submission `json:"submission"`
	Events     []shared.Event         `json:"-"`
}

// SubmitMilestoneHandler handles SubmitMilestoneCommand.
type SubmitMilestoneHandler struct {
	*Engine
}

// NewSubmitMilestoneHandler creates a new handler.
func NewSubmitMilestoneHandler(engine *Engine) *SubmitMilestoneHandler {
	return &SubmitMilestoneHandler{Engine: engine}
}

// Handle executes the command.
func (h *SubmitMilestoneHandler) Handle(ctx context.Context, cmd SubmitMilestoneCommand) (*SubmitMilestoneResult, error) {
	const op = "SubmitMilestone"

	if err := requireUserID(op, cmd.UserID); err != nil {
		return nil, err
	}
	if err := curriculum.ValidateYouTubeURL(cmd.YouTubeURL); err != nil {
		return nil, err
	}
	if _, ok := h.curriculum.Catalog().Focus(cmd.FocusID); !ok {
		return nil, shared.NewDomainError("curriculum", op, shared.ErrNotFound,
			fmt.Sprintf("focus %d not found", cmd.FocusID))
	}

	var submission *curriculum.Submission
	tx, err := h.inUserTx(ctx, op, cmd.UserID, func(ctx context.Context, tx *userTx) error {
		repo := tx.uow.Curriculum()
		progress, err := repo.Progress(ctx, tx.userID)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		latest, err := repo.LatestSubmission(ctx, tx.userID, cmd.FocusID)
		if err != nil {
			return fmt.Errorf("failed to load submissions: %w", err)
		}
		if err := curriculum.CanSubmit(progress, cmd.FocusID, latest); err != nil {
			return err
		}
		submission, err = curriculum.NewSubmission(tx.userID, cmd.FocusID, cmd.YouTubeURL, tx.now)
		if err != nil {
			return err
		}
		if err := repo.CreateSubmission(ctx, submission); err != nil {
			return err
		}
		tx.emit(shared.NewEvent(shared.EventMilestoneSubmitted, tx.userID, tx.now, map[string]any{
			"submission_id": submission.ID,
			"focus_id":      submission.FocusID,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("milestone submitted",
		logger.UserID(cmd.UserID),
		logger.FocusID(cmd.FocusID),
		logger.String("submission_id", submission.ID),
	)
	return &SubmitMilestoneResult{Submission: submission, Events: tx.events}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Grading
// ─────────────────────────────────────────────────────────────────────────────

// GradeMilestoneCommand grades a pending submission.
type GradeMilestoneCommand struct {
	SubmissionID string
	Grade        string
	TeacherNotes string
}

// Validate validates the command.
func (c GradeMilestoneCommand) Validate() error {
	if strings.TrimSpace(c.SubmissionID) == "" {
		return shared.Validationf("command", "GradeMilestone", "submission_id is required")
	}
	if _, err := curriculum.ParseGrade(c.Grade); err != nil {
		return err
	}
	if len([]rune(c.TeacherNotes)) > curriculum.MaxTeacherNotesLength {
		return shared.Validationf("command", "GradeMilestone", "teacher notes exceed %d characters", curriculum.MaxTeacherNotesLength)
	}
	return nil
}

// GradeMilestoneResult carries the graded submission and any rewards.
type GradeMilestoneResult struct {
	Submission        *curriculum.Submission `json:"submission"`
	XPEarned          int                    `json:"xp_earned"`
	GemsEarned        int                    `json:"gems_earned"`
	BadgesNewlyEarned []string               `json:"badges_newly_earned"`
	Events            []shared.Event         `json:"-"`
}

// GradeMilestoneHandler handles GradeMilestoneCommand.
type GradeMilestoneHandler struct {
	*Engine
}

// NewGradeMilestoneHandler creates a new handler.
func NewGradeMilestoneHandler(engine *Engine) *GradeMilestoneHandler {
	return &GradeMilestoneHandler{Engine: engine}
}

// Handle executes the command. The submission is looked up first to find its
// owner, then re-read under the owner's lock before grading.
func (h *GradeMilestoneHandler) Handle(ctx context.Context, cmd GradeMilestoneCommand) (*GradeMilestoneResult, error) {
	const op = "GradeMilestone"

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	grade, _ := curriculum.ParseGrade(cmd.Grade)

	var owner string
	err := h.lookup(ctx, func(uow stats.UnitOfWork) error {
		s, err := uow.Curriculum().Submission(ctx, cmd.SubmissionID)
		if err != nil {
			return err
		}
		owner = s.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		submission *curriculum.Submission
		xp, gems   int
	)
	tx, err := h.inUserTx(ctx, op, owner, func(ctx context.Context, tx *userTx) error {
		repo := tx.uow.Curriculum()
		s, err := repo.Submission(ctx, cmd.SubmissionID)
		if err != nil {
			return err
		}
		if err := s.ApplyGrade(grade, cmd.TeacherNotes, tx.now); err != nil {
			return err
		}
		if err := repo.UpdateSubmission(ctx, s); err != nil {
			return fmt.Errorf("failed to store grade: %w", err)
		}
		submission = s
		tx.emit(shared.NewEvent(shared.EventMilestoneGraded, tx.userID, tx.now, map[string]any{
			"submission_id": s.ID,
			"focus_id":      s.FocusID,
			"grade":         string(s.Grade),
		}))

		xp, gems = 0, 0
		if grade != curriculum.GradePass || !h.features.Enabled(config.FeatureCurriculumRewards, tx.userID) {
			return nil
		}
		xp, gems = h.policy.MilestoneXP, h.policy.MilestoneGems
		if err := tx.apply(ctx, stats.Delta{AddXP: xp, AddGems: gems}, "milestone"); err != nil {
			return err
		}
		return tx.badgePass(ctx)
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("milestone graded",
		logger.UserID(owner),
		logger.String("submission_id", submission.ID),
		logger.String("grade", string(submission.Grade)),
	)
	return &GradeMilestoneResult{
		Submission:        submission,
		XPEarned:          xp,
		GemsEarned:        gems,
		BadgesNewlyEarned: nonNil(tx.badges),
		Events:            tx.events,
	}, nil
}
