package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

type sessionRepo struct{ u *unitOfWork }

const sessionColumns = `id, user_id, item_id, duration_minutes, sentiment_score,
	improvement_detected, notes, xp_earned, created_at`

// selectSessionColumns reads the uuid id back as text.
const selectSessionColumns = `id::text, user_id, item_id, duration_minutes, sentiment_score,
	improvement_detected, notes, xp_earned, created_at`

// validID reports whether id can name a row; anything else is simply absent.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanSession(row pgx.Row) (*practice.Session, error) {
	var s practice.Session
	err := row.Scan(&s.ID, &s.UserID, &s.ItemID, &s.DurationMinutes, &s.SentimentScore,
		&s.ImprovementDetected, &s.Notes, &s.XPEarned, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r sessionRepo) Create(ctx context.Context, s *practice.Session) error {
	if _, err := r.u.require(s.UserID); err != nil {
		return err
	}
	_, err := r.u.tx.Exec(ctx, `
		INSERT INTO practice_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.ItemID, s.DurationMinutes, s.SentimentScore,
		s.ImprovementDetected, s.Notes, s.XPEarned, s.CreatedAt)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("practice", "CreateSession", shared.ErrAlreadyExists,
			fmt.Sprintf("session %s already exists", s.ID))
	}
	if err != nil {
		return conflictOr(err, "failed to insert session")
	}
	return nil
}

func (r sessionRepo) Get(ctx context.Context, id string) (*practice.Session, error) {
	if !validID(id) {
		return nil, shared.NewDomainError("practice", "GetSession", shared.ErrNotFound,
			fmt.Sprintf("session %s not found", id))
	}
	s, err := scanSession(r.u.tx.QueryRow(ctx,
		`SELECT `+selectSessionColumns+` FROM practice_sessions WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.NewDomainError("practice", "GetSession", shared.ErrNotFound,
			fmt.Sprintf("session %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r sessionRepo) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.u.require(s.UserID); err != nil {
		return err
	}
	if _, err := r.u.tx.Exec(ctx, `DELETE FROM practice_sessions WHERE id = $1`, s.ID); err != nil {
		return conflictOr(err, "failed to delete session")
	}
	return nil
}

func (r sessionRepo) list(ctx context.Context, userID string, limit, offset int) ([]*practice.Session, error) {
	q := `SELECT ` + selectSessionColumns + ` FROM practice_sessions WHERE user_id = $1
		ORDER BY created_at DESC, id OFFSET $2`
	args := []any{userID, offset}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.u.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := []*practice.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r sessionRepo) ListByUser(ctx context.Context, userID string, opts practice.ListOptions) ([]*practice.Session, error) {
	return r.list(ctx, userID, opts.Limit, max(opts.Offset, 0))
}

// History loads every session of the user; hour bands depend on the
// configured zone, so the aggregation runs in Go.
func (r sessionRepo) History(ctx context.Context, userID string, q practice.HistoryQuery) (practice.History, error) {
	sessions, err := r.list(ctx, userID, 0, 0)
	if err != nil {
		return practice.History{}, err
	}
	return practice.Summarize(sessions, q), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Badges
// ─────────────────────────────────────────────────────────────────────────────

type badgeRepo struct{ u *unitOfWork }

func (r badgeRepo) Earned(ctx context.Context, userID string) (map[string]time.Time, error) {
	list, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(list))
	for _, ub := range list {
		out[ub.BadgeKey] = ub.EarnedAt
	}
	return out, nil
}

func (r badgeRepo) Award(ctx context.Context, ub badge.UserBadge) error {
	if _, err := r.u.require(ub.UserID); err != nil {
		return err
	}
	tag, err := r.u.tx.Exec(ctx, `
		INSERT INTO user_badges (user_id, badge_key, earned_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_key) DO NOTHING`,
		ub.UserID, ub.BadgeKey, ub.EarnedAt)
	if err != nil {
		return conflictOr(err, "failed to award badge")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("badge", "Award", shared.ErrAlreadyExists,
			fmt.Sprintf("badge %s already earned", ub.BadgeKey))
	}
	return nil
}

func (r badgeRepo) ListByUser(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	rows, err := r.u.tx.Query(ctx, `
		SELECT user_id, badge_key, earned_at FROM user_badges
		WHERE user_id = $1 ORDER BY earned_at, badge_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[badge.UserBadge])
	if err != nil {
		return nil, fmt.Errorf("failed to scan badges: %w", err)
	}
	if out == nil {
		out = []badge.UserBadge{}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Curriculum
// ─────────────────────────────────────────────────────────────────────────────

type curriculumRepo struct{ u *unitOfWork }

func (r curriculumRepo) Progress(ctx context.Context, userID string) (*curriculum.Progress, error) {
	p := curriculum.NewProgress(userID)

	rows, err := r.u.tx.Query(ctx,
		`SELECT focus_id, key_slot, completed_at FROM curriculum_progress WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref curriculum.SlotRef
		var at time.Time
		if err := rows.Scan(&ref.FocusID, &ref.Key, &at); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		p.Completed[ref] = at
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var focus *int
	var key *curriculum.Key
	err = r.u.tx.QueryRow(ctx,
		`SELECT focus_id, key_slot FROM curriculum_position WHERE user_id = $1`, userID).Scan(&focus, &key)
	if err != nil && !IsNoRows(err) {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}
	if focus != nil && key != nil {
		p.Position = &curriculum.SlotRef{FocusID: *focus, Key: *key}
	}
	return p, nil
}

func (r curriculumRepo) CompleteSlot(ctx context.Context, userID string, ref curriculum.SlotRef, at time.Time) error {
	if _, err := r.u.require(userID); err != nil {
		return err
	}
	tag, err := r.u.tx.Exec(ctx, `
		INSERT INTO curriculum_progress (user_id, focus_id, key_slot, completed_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		userID, ref.FocusID, int(ref.Key), at)
	if err != nil {
		return conflictOr(err, "failed to complete slot")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("curriculum", "CompleteSlot", shared.ErrStepAlreadyComplete,
			fmt.Sprintf("%s is already complete", ref))
	}
	return nil
}

func (r curriculumRepo) ClearSlots(ctx context.Context, userID string, refs []curriculum.SlotRef) error {
	if _, err := r.u.require(userID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, ref := range refs {
		batch.Queue(`DELETE FROM curriculum_progress WHERE user_id = $1 AND focus_id = $2 AND key_slot = $3`,
			userID, ref.FocusID, int(ref.Key))
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.u.tx.SendBatch(ctx, batch).Close(); err != nil {
		return conflictOr(err, "failed to clear slots")
	}
	return nil
}

func (r curriculumRepo) SetPosition(ctx context.Context, userID string, pos *curriculum.SlotRef) error {
	if _, err := r.u.require(userID); err != nil {
		return err
	}
	var focus, key *int
	if pos != nil {
		f, k := pos.FocusID, int(pos.Key)
		focus, key = &f, &k
	}
	_, err := r.u.tx.Exec(ctx, `
		INSERT INTO curriculum_position (user_id, focus_id, key_slot) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET focus_id = EXCLUDED.focus_id, key_slot = EXCLUDED.key_slot`,
		userID, focus, key)
	if err != nil {
		return conflictOr(err, "failed to store position")
	}
	return nil
}

const submissionColumns = `id::text, user_id, focus_id, youtube_url, grade, teacher_notes, submitted_at, graded_on`

func scanSubmission(row pgx.Row) (*curriculum.Submission, error) {
	var s curriculum.Submission
	err := row.Scan(&s.ID, &s.UserID, &s.FocusID, &s.YouTubeURL, &s.Grade, &s.TeacherNotes,
		&s.SubmittedAt, &s.GradedOn)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r curriculumRepo) CreateSubmission(ctx context.Context, s *curriculum.Submission) error {
	if _, err := r.u.require(s.UserID); err != nil {
		return err
	}
	_, err := r.u.tx.Exec(ctx, `
		INSERT INTO milestone_submissions
			(id, user_id, focus_id, youtube_url, grade, teacher_notes, submitted_at, graded_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.FocusID, s.YouTubeURL, string(s.Grade), s.TeacherNotes, s.SubmittedAt, s.GradedOn)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("curriculum", "CreateSubmission", shared.ErrAlreadyExists,
			fmt.Sprintf("submission %s already exists", s.ID))
	}
	if err != nil {
		return conflictOr(err, "failed to insert submission")
	}
	return nil
}

func (r curriculumRepo) Submission(ctx context.Context, id string) (*curriculum.Submission, error) {
	if !validID(id) {
		return nil, shared.NewDomainError("curriculum", "Submission", shared.ErrNotFound,
			fmt.Sprintf("submission %s not found", id))
	}
	s, err := scanSubmission(r.u.tx.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM milestone_submissions WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.NewDomainError("curriculum", "Submission", shared.ErrNotFound,
			fmt.Sprintf("submission %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

func (r curriculumRepo) LatestSubmission(ctx context.Context, userID string, focusID int) (*curriculum.Submission, error) {
	s, err := scanSubmission(r.u.tx.QueryRow(ctx, `
		SELECT `+submissionColumns+` FROM milestone_submissions
		WHERE user_id = $1 AND focus_id = $2 ORDER BY seq DESC LIMIT 1`, userID, focusID))
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest submission: %w", err)
	}
	return s, nil
}

func (r curriculumRepo) UpdateSubmission(ctx context.Context, s *curriculum.Submission) error {
	if _, err := r.u.require(s.UserID); err != nil {
		return err
	}
	tag, err := r.u.tx.Exec(ctx, `
		UPDATE milestone_submissions SET grade = $2, teacher_notes = $3, graded_on = $4
		WHERE id = $1`,
		s.ID, string(s.Grade), s.TeacherNotes, s.GradedOn)
	if err != nil {
		return conflictOr(err, "failed to update submission")
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("curriculum", "UpdateSubmission", shared.ErrNotFound,
			fmt.Sprintf("submission %s not found", s.ID))
	}
	return nil
}
