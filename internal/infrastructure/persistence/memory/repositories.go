package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

type sessionRepo struct{ u *unitOfWork }

func (r sessionRepo) Create(_ context.Context, s *practice.Session) error {
	d, err := r.u.locked(s.UserID)
	if err != nil {
		return err
	}
	if _, exists := d.sessions[s.ID]; exists {
		return shared.NewDomainError("practice", "CreateSession", shared.ErrAlreadyExists,
			fmt.Sprintf("session %s already exists", s.ID))
	}
	cp := *s
	d.sessions[s.ID] = &cp
	return nil
}

func (r sessionRepo) Get(_ context.Context, id string) (*practice.Session, error) {
	if d := r.owner(id); d != nil {
		if s, ok := d.sessions[id]; ok {
			cp := *s
			return &cp, nil
		}
	}
	return nil, shared.NewDomainError("practice", "GetSession", shared.ErrNotFound,
		fmt.Sprintf("session %s not found", id))
}

// owner finds the data holding session id, staged data first.
func (r sessionRepo) owner(id string) *userData {
	for _, d := range r.u.staged {
		if _, ok := d.sessions[id]; ok {
			return d
		}
	}
	r.u.store.mu.RLock()
	userID, ok := r.u.store.sessionOwner[id]
	r.u.store.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.u.view(userID)
}

func (r sessionRepo) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	d, err := r.u.locked(s.UserID)
	if err != nil {
		return err
	}
	delete(d.sessions, id)
	return nil
}

func (r sessionRepo) all(userID string) []*practice.Session {
	d := r.u.view(userID)
	if d == nil {
		return nil
	}
	out := make([]*practice.Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r sessionRepo) ListByUser(_ context.Context, userID string, opts practice.ListOptions) ([]*practice.Session, error) {
	sessions := r.all(userID)
	if opts.Offset >= len(sessions) {
		return []*practice.Session{}, nil
	}
	sessions = sessions[max(opts.Offset, 0):]
	if opts.Limit > 0 && opts.Limit < len(sessions) {
		sessions = sessions[:opts.Limit]
	}
	return sessions, nil
}

func (r sessionRepo) History(_ context.Context, userID string, q practice.HistoryQuery) (practice.History, error) {
	return practice.Summarize(r.all(userID), q), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Badges
// ─────────────────────────────────────────────────────────────────────────────

type badgeRepo struct{ u *unitOfWork }

func (r badgeRepo) Earned(_ context.Context, userID string) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	if d := r.u.view(userID); d != nil {
		for k, v := range d.badges {
			out[k] = v
		}
	}
	return out, nil
}

func (r badgeRepo) Award(_ context.Context, ub badge.UserBadge) error {
	d, err := r.u.locked(ub.UserID)
	if err != nil {
		return err
	}
	if _, ok := d.badges[ub.BadgeKey]; ok {
		return shared.NewDomainError("badge", "Award", shared.ErrAlreadyExists,
			fmt.Sprintf("badge %s already earned", ub.BadgeKey))
	}
	d.badges[ub.BadgeKey] = ub.EarnedAt
	return nil
}

func (r badgeRepo) ListByUser(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	earned, _ := r.Earned(ctx, userID)
	out := make([]badge.UserBadge, 0, len(earned))
	for key, at := range earned {
		out = append(out, badge.UserBadge{UserID: userID, BadgeKey: key, EarnedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].BadgeKey < out[j].BadgeKey
	})
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Curriculum
// ─────────────────────────────────────────────────────────────────────────────

type curriculumRepo struct{ u *unitOfWork }

func (r curriculumRepo) Progress(_ context.Context, userID string) (*curriculum.Progress, error) {
	p := curriculum.NewProgress(userID)
	d := r.u.view(userID)
	if d == nil {
		return p, nil
	}
	for ref, at := range d.completed {
		p.Completed[ref] = at
	}
	if d.position != nil {
		pos := *d.position
		p.Position = &pos
	}
	return p, nil
}

func (r curriculumRepo) CompleteSlot(_ context.Context, userID string, ref curriculum.SlotRef, at time.Time) error {
	d, err := r.u.locked(userID)
	if err != nil {
		return err
	}
	if _, ok := d.completed[ref]; ok {
		return shared.NewDomainError("curriculum", "CompleteSlot", shared.ErrStepAlreadyComplete,
			fmt.Sprintf("%s is already complete", ref))
	}
	d.completed[ref] = at
	return nil
}

func (r curriculumRepo) ClearSlots(_ context.Context, userID string, refs []curriculum.SlotRef) error {
	d, err := r.u.locked(userID)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		delete(d.completed, ref)
	}
	return nil
}

func (r curriculumRepo) SetPosition(_ context.Context, userID string, pos *curriculum.SlotRef) error {
	d, err := r.u.locked(userID)
	if err != nil {
		return err
	}
	if pos == nil {
		d.position = nil
		return nil
	}
	p := *pos
	d.position = &p
	return nil
}

func (r curriculumRepo) CreateSubmission(_ context.Context, s *curriculum.Submission) error {
	d, err := r.u.locked(s.UserID)
	if err != nil {
		return err
	}
	if _, ok := d.submissions[s.ID]; ok {
		return shared.NewDomainError("curriculum", "CreateSubmission", shared.ErrAlreadyExists,
			fmt.Sprintf("submission %s already exists", s.ID))
	}
	d.submissions[s.ID] = cloneSubmission(s)
	d.submitted = append(d.submitted, s.ID)
	return nil
}

func (r curriculumRepo) Submission(_ context.Context, id string) (*curriculum.Submission, error) {
	if d := r.owner(id); d != nil {
		if s, ok := d.submissions[id]; ok {
			return cloneSubmission(s), nil
		}
	}
	return nil, shared.NewDomainError("curriculum", "Submission", shared.ErrNotFound,
		fmt.Sprintf("submission %s not found", id))
}

func (r curriculumRepo) owner(id string) *userData {
	for _, d := range r.u.staged {
		if _, ok := d.submissions[id]; ok {
			return d
		}
	}
	r.u.store.mu.RLock()
	userID, ok := r.u.store.submissionOwner[id]
	r.u.store.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.u.view(userID)
}

func (r curriculumRepo) LatestSubmission(_ context.Context, userID string, focusID int) (*curriculum.Submission, error) {
	d := r.u.view(userID)
	if d == nil {
		return nil, nil
	}
	for i := len(d.submitted) - 1; i >= 0; i-- {
		if s := d.submissions[d.submitted[i]]; s != nil && s.FocusID == focusID {
			return cloneSubmission(s), nil
		}
	}
	return nil, nil
}

func (r curriculumRepo) UpdateSubmission(_ context.Context, s *curriculum.Submission) error {
	d, err := r.u.locked(s.UserID)
	if err != nil {
		return err
	}
	if _, ok := d.submissions[s.ID]; !ok {
		return shared.NewDomainError("curriculum", "UpdateSubmission", shared.ErrNotFound,
			fmt.Sprintf("submission %s not found", s.ID))
	}
	d.submissions[s.ID] = cloneSubmission(s)
	return nil
}
