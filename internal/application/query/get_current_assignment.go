package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CURRENT ASSIGNMENT QUERY
// Returns the slot to practice next: the first empty key of the first focus
// with an empty key, or of one given focus.
// ══════════════════════════════════════════════════════════════════════════════

// GetCurrentAssignmentQuery names the user and optionally a focus.
type GetCurrentAssignmentQuery struct {
	UserID  string
	FocusID *int
}

// GetCurrentAssignmentResult holds the assignment, nil when nothing is left.
type GetCurrentAssignmentResult struct {
	Assignment *curriculum.Assignment `json:"assignment"`
	Complete   bool                   `json:"complete"`
}

// GetCurrentAssignmentHandler handles assignment requests.
type GetCurrentAssignmentHandler struct {
	store   stats.Store
	machine *curriculum.Machine
}

// NewGetCurrentAssignmentHandler creates a new handler.
func NewGetCurrentAssignmentHandler(store stats.Store, machine *curriculum.Machine) *GetCurrentAssignmentHandler {
	return &GetCurrentAssignmentHandler{store: store, machine: machine}
}

// Handle executes the query. An unknown focus yields shared.ErrNotFound.
func (h *GetCurrentAssignmentHandler) Handle(ctx context.Context, q GetCurrentAssignmentQuery) (*GetCurrentAssignmentResult, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, shared.Validationf("query", "GetCurrentAssignment", "user_id is required")
	}

	var progress *curriculum.Progress
	err := readOnly(ctx, h.store, func(uow stats.UnitOfWork) error {
		var err error
		progress, err = uow.Curriculum().Progress(ctx, q.UserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	a, err := h.machine.CurrentAssignment(progress, q.FocusID)
	if err != nil {
		return nil, err
	}
	return &GetCurrentAssignmentResult{Assignment: a, Complete: a == nil}, nil
}
