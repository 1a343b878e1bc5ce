// Package memory implements the stats store and every per-user repository in
// process memory. Units of work serialize per user with a lock held from Lock
// until Commit or Rollback; writes are staged on a copy of the user's data and
// become visible on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// userData is everything stored for one user.
type userData struct {
	stats       stats.UserStats
	sessions    map[string]*practice.Session
	badges      map[string]time.Time
	completed   map[curriculum.SlotRef]time.Time
	position    *curriculum.SlotRef
	submissions map[string]*curriculum.Submission
	// submitted lists submission ids in creation order
	submitted []string
}

func newUserData(userID string) *userData {
	return &userData{
		stats:       stats.New(userID),
		sessions:    make(map[string]*practice.Session),
		badges:      make(map[string]time.Time),
		completed:   make(map[curriculum.SlotRef]time.Time),
		submissions: make(map[string]*curriculum.Submission),
	}
}

// clone deep-copies the user's data.
func (d *userData) clone() *userData {
	out := &userData{
		stats:       d.stats.Clone(),
		sessions:    make(map[string]*practice.Session, len(d.sessions)),
		badges:      make(map[string]time.Time, len(d.badges)),
		completed:   make(map[curriculum.SlotRef]time.Time, len(d.completed)),
		submissions: make(map[string]*curriculum.Submission, len(d.submissions)),
	}
	for id, s := range d.sessions {
		cp := *s
		out.sessions[id] = &cp
	}
	for k, v := range d.badges {
		out.badges[k] = v
	}
	for k, v := range d.completed {
		out.completed[k] = v
	}
	if d.position != nil {
		p := *d.position
		out.position = &p
	}
	for id, s := range d.submissions {
		out.submissions[id] = cloneSubmission(s)
	}
	out.submitted = append([]string(nil), d.submitted...)
	return out
}

func cloneSubmission(s *curriculum.Submission) *curriculum.Submission {
	cp := *s
	if s.GradedOn != nil {
		t := *s.GradedOn
		cp.GradedOn = &t
	}
	return &cp
}

// Store is the in-memory stats.Store.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userData

	// owner indexes map entity ids to user ids
	sessionOwner    map[string]string
	submissionOwner map[string]string

	// visible holds opted-in users with the time they opted in
	visible map[string]time.Time

	lockMu sync.Mutex
	locks  map[string]chan struct{}

	limits stats.Limits
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store enforcing limits on every delta.
func NewStore(limits stats.Limits, opts ...Option) *Store {
	s := &Store{
		users:           make(map[string]*userData),
		sessionOwner:    make(map[string]string),
		submissionOwner: make(map[string]string),
		visible:         make(map[string]time.Time),
		locks:           make(map[string]chan struct{}),
		limits:          limits,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements stats.Store.
func (s *Store) Get(_ context.Context, userID string) (stats.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.users[userID]; ok {
		return d.stats.Clone(), nil
	}
	return stats.New(userID), nil
}

// Begin implements stats.Store.
func (s *Store) Begin(ctx context.Context) (stats.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{store: s, staged: make(map[string]*userData)}, nil
}

// Users returns the number of users with a stored record.
func (s *Store) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// acquire takes the user's lock, waiting until it is free or ctx is done.
func (s *Store) acquire(ctx context.Context, userID string) error {
	s.lockMu.Lock()
	ch, ok := s.locks[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[userID] = ch
	}
	s.lockMu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to lock user %s: %w", userID, ctx.Err())
	}
}

func (s *Store) release(userID string) {
	s.lockMu.Lock()
	ch := s.locks[userID]
	s.lockMu.Unlock()
	<-ch
}

// committed returns a copy of the user's committed data, or nil.
func (s *Store) committed(userID string) *userData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.users[userID]; ok {
		return d.clone()
	}
	return nil
}

// write replaces a user's committed data and refreshes the id indexes.
// Callers hold s.mu.
func (s *Store) write(userID string, d *userData) {
	if old, ok := s.users[userID]; ok {
		for id := range old.sessions {
			delete(s.sessionOwner, id)
		}
		for id := range old.submissions {
			delete(s.submissionOwner, id)
		}
	}
	for id := range d.sessions {
		s.sessionOwner[id] = userID
	}
	for id := range d.submissions {
		s.submissionOwner[id] = userID
	}
	s.users[userID] = d
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

type unitOfWork struct {
	store  *Store
	staged map[string]*userData
	done   bool
}

var _ stats.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) Lock(ctx context.Context, userID string) (stats.UserStats, error) {
	if u.done {
		return stats.UserStats{}, errFinished
	}
	if d, ok := u.staged[userID]; ok {
		return d.stats.Clone(), nil
	}
	if err := u.store.acquire(ctx, userID); err != nil {
		return stats.UserStats{}, err
	}
	d := u.store.committed(userID)
	if d == nil {
		d = newUserData(userID)
	}
	u.staged[userID] = d
	return d.stats.Clone(), nil
}

func (u *unitOfWork) ApplyDelta(_ context.Context, userID string, delta stats.Delta) (stats.UserStats, error) {
	d, err := u.locked(userID)
	if err != nil {
		return stats.UserStats{}, err
	}
	next, err := stats.Apply(d.stats, delta, u.store.limits, u.store.now())
	if err != nil {
		return stats.UserStats{}, err
	}
	d.stats = next
	return next.Clone(), nil
}

func (u *unitOfWork) Sessions() practice.Repository     { return sessionRepo{u} }
func (u *unitOfWork) Badges() badge.Repository          { return badgeRepo{u} }
func (u *unitOfWork) Curriculum() curriculum.Repository { return curriculumRepo{u} }

func (u *unitOfWork) Commit(_ context.Context) error {
	if u.done {
		return errFinished
	}
	u.store.mu.Lock()
	for userID, d := range u.staged {
		u.store.write(userID, d)
	}
	u.store.mu.Unlock()
	u.finish()
	return nil
}

func (u *unitOfWork) Rollback(_ context.Context) error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *unitOfWork) finish() {
	for userID := range u.staged {
		u.store.release(userID)
	}
	u.staged = nil
	u.done = true
}

var errFinished = errors.New("unit of work already finished")

// locked returns the staged data of a user this unit locked.
func (u *unitOfWork) locked(userID string) (*userData, error) {
	if u.done {
		return nil, errFinished
	}
	d, ok := u.staged[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", stats.ErrNotLocked, userID)
	}
	return d, nil
}

// view returns the user's data as this unit sees it: staged when locked,
// otherwise a copy of the committed data. nil when the user has nothing.
func (u *unitOfWork) view(userID string) *userData {
	if d, ok := u.staged[userID]; ok {
		return d
	}
	return u.store.committed(userID)
}
