package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/practice-hub/internal/application/command"
	"github.com/alem-hub/practice-hub/internal/application/query"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// recordSessionRequest is the body of POST /users/{id}/sessions.
type recordSessionRequest struct {
	ItemID              string `json:"item_id" validate:"required,max=128"`
	DurationMinutes     *int   `json:"duration_minutes" validate:"required,min=1,max=1440"`
	SentimentScore      *int   `json:"sentiment_score" validate:"required,min=1,max=5"`
	ImprovementDetected bool   `json:"improvement_detected"`
	Notes               string `json:"notes" validate:"max=2000"`
}

type purchaseShieldRequest struct {
	Cost int `json:"cost" validate:"min=0"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

type markStepRequest struct {
	FocusID int `json:"focus_id" validate:"required,min=1"`
}

type submitMilestoneRequest struct {
	FocusID    int    `json:"focus_id" validate:"required,min=1"`
	YouTubeURL string `json:"youtube_url" validate:"required,url"`
}

type gradeMilestoneRequest struct {
	Grade        string `json:"grade" validate:"required,oneof=pass redo"`
	TeacherNotes string `json:"teacher_notes" validate:"max=4000"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "Request body too large")
		case errors.Is(err, io.EOF):
			writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "Request body is required")
		default:
			writeJSONError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		}
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps an error to a status code. Unknown errors become 500 and
// are logged; their text never reaches the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		writeAPIError(w, r, http.StatusBadRequest, &APIError{
			Code:    "validation_error",
			Message: "Request validation failed",
			Fields:  fields,
		})
		return
	}

	status, code := classify(err)
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(max(1, int(s.config.RetryAfter.Seconds()+0.5))))
		writeJSONError(w, r, status, code, "The request conflicted with a concurrent update; retry shortly")
	case http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error("request failed", logger.String("path", r.URL.Path), logger.Err(err))
		writeJSONError(w, r, status, code, "An unexpected error occurred")
	default:
		writeJSONError(w, r, status, code, messageOf(err))
	}
}

// classify returns the status and machine-readable code for err.
func classify(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, shared.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrInsufficientGems):
		return http.StatusConflict, "insufficient_gems"
	case errors.Is(err, shared.ErrShieldCapExceeded):
		return http.StatusConflict, "shield_cap_exceeded"
	case errors.Is(err, shared.ErrAlreadyGraded):
		return http.StatusConflict, "already_graded"
	case errors.Is(err, shared.ErrStepAlreadyComplete):
		return http.StatusConflict, "step_already_complete"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "invalid_state"
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, "concurrent_modification"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// messageOf returns the DomainError message without the domain.op prefix.
func messageOf(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

func (s *Server) notConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Handler not configured")
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"status":  "healthy",
			"uptime":  s.Uptime().String(),
			"version": s.deps.Version,
		})
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady fails only when a critical dependency is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION & STATS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordSession handles POST /api/v1/users/{id}/sessions
func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordSession == nil {
		s.notConfigured(w, r)
		return
	}
	var req recordSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	cmd := command.RecordSessionCommand{
		UserID:              r.PathValue("id"),
		ItemID:              req.ItemID,
		DurationMinutes:     *req.DurationMinutes,
		SentimentScore:      *req.SentimentScore,
		ImprovementDetected: req.ImprovementDetected,
		Notes:               req.Notes,
	}

	res, err := s.deps.RecordSession.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

// handleListSessions handles GET /api/v1/users/{id}/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListSessions == nil {
		s.notConfigured(w, r)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := s.deps.ListSessions.Handle(r.Context(), query.ListSessionsQuery{
		UserID: r.PathValue("id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleDeleteSession handles DELETE /api/v1/users/{id}/sessions/{session_id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeleteSession == nil {
		s.notConfigured(w, r)
		return
	}
	res, err := s.deps.DeleteSession.Handle(r.Context(), command.DeleteSessionCommand{
		UserID:    r.PathValue("id"),
		SessionID: r.PathValue("session_id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetUserStats handles GET /api/v1/users/{id}/stats
func (s *Server) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserStats == nil {
		s.notConfigured(w, r)
		return
	}
	res, err := s.deps.GetUserStats.Handle(r.Context(), query.GetUserStatsQuery{UserID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handlePurchaseShield handles POST /api/v1/users/{id}/shields. An empty
// body buys at the configured price.
func (s *Server) handlePurchaseShield(w http.ResponseWriter, r *http.Request) {
	if s.deps.PurchaseShield == nil {
		s.notConfigured(w, r)
		return
	}
	var req purchaseShieldRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.PurchaseShield.Handle(r.Context(), command.PurchaseShieldCommand{
		UserID: r.PathValue("id"),
		Cost:   req.Cost,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSetVisibility handles PUT /api/v1/users/{id}/leaderboard-visibility
func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	if s.deps.SetVisibility == nil {
		s.notConfigured(w, r)
		return
	}
	var req visibilityRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.SetVisibility.Handle(r.Context(), command.SetLeaderboardVisibilityCommand{
		UserID:  r.PathValue("id"),
		Visible: *req.Visible,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboard == nil {
		s.notConfigured(w, r)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Limit:     limit,
		Offset:    offset,
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetPosition handles GET /api/v1/leaderboard/position/{id}
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetPosition == nil {
		s.notConfigured(w, r)
		return
	}
	res, err := s.deps.GetPosition.Handle(r.Context(), query.GetLeaderboardPositionQuery{
		UserID:    r.PathValue("id"),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetAssignment handles GET /api/v1/users/{id}/curriculum/assignment
func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetAssignment == nil {
		s.notConfigured(w, r)
		return
	}
	q := query.GetCurrentAssignmentQuery{UserID: r.PathValue("id")}
	if raw := r.URL.Query().Get("focus_id"); raw != "" {
		focus, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "validation_error", "focus_id must be an integer")
			return
		}
		q.FocusID = &focus
	}

	res, err := s.deps.GetAssignment.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleMarkStepComplete handles
// POST /api/v1/users/{id}/curriculum/steps/{step_id}/complete
func (s *Server) handleMarkStepComplete(w http.ResponseWriter, r *http.Request) {
	if s.deps.MarkStepComplete == nil {
		s.notConfigured(w, r)
		return
	}
	stepID, err := curriculum.ParseStepID(r.PathValue("step_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req markStepRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.MarkStepComplete.Handle(r.Context(), command.MarkStepCompleteCommand{
		UserID:  r.PathValue("id"),
		StepID:  stepID,
		FocusID: req.FocusID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleFixProgress handles POST /api/v1/users/{id}/curriculum/fix
func (s *Server) handleFixProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.FixProgress == nil {
		s.notConfigured(w, r)
		return
	}
	res, err := s.deps.FixProgress.Handle(r.Context(), command.FixProgressCommand{UserID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleSubmitMilestone handles POST /api/v1/users/{id}/milestones
func (s *Server) handleSubmitMilestone(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitMilestone == nil {
		s.notConfigured(w, r)
		return
	}
	var req submitMilestoneRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.SubmitMilestone.Handle(r.Context(), command.SubmitMilestoneCommand{
		UserID:     r.PathValue("id"),
		FocusID:    req.FocusID,
		YouTubeURL: req.YouTubeURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

// handleGradeMilestone handles POST /api/v1/milestones/{id}/grade. The
// route is wrapped by GraderAuth.
func (s *Server) handleGradeMilestone(w http.ResponseWriter, r *http.Request) {
	if s.deps.GradeMilestone == nil {
		s.notConfigured(w, r)
		return
	}
	var req gradeMilestoneRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.GradeMilestone.Handle(r.Context(), command.GradeMilestoneCommand{
		SubmissionID: r.PathValue("id"),
		Grade:        req.Grade,
		TeacherNotes: req.TeacherNotes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

