package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/practice"
)

// Store is the entry point to per-user state.
type Store interface {
	// Get returns a read snapshot. A user without a record gets the zeroed
	// record; reads never create rows.
	Get(ctx context.Context, userID string) (UserStats, error)

	// Begin starts a unit of work.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork groups every effect of one triggering event. Nothing is
// visible to other readers until Commit; Rollback discards everything.
//
// Lock must be called before any write for a user. It is the per-user
// serialization boundary: a second unit locking the same user blocks until
// the first one commits or rolls back.
type UnitOfWork interface {
	// Lock acquires the user's lock and returns the current stats, creating
	// the zeroed record if absent.
	Lock(ctx context.Context, userID string) (UserStats, error)

	// ApplyDelta applies delta to the locked user's stats and returns the
	// result. A conflicting concurrent write yields
	// shared.ErrConcurrentModification.
	ApplyDelta(ctx context.Context, userID string, delta Delta) (UserStats, error)

	Sessions() practice.Repository
	Badges() badge.Repository
	Curriculum() curriculum.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ErrNotLocked is returned by writes for a user the unit did not lock.
var ErrNotLocked = errors.New("user is not locked by this unit of work")

// WithUnitOfWork runs fn inside a unit of work. fn's error rolls back;
// otherwise the unit commits.
func WithUnitOfWork(ctx context.Context, store Store, fn func(uow UnitOfWork) error) (err error) {
	uow, err := store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = uow.Rollback(ctx)
		}
	}()

	if err = fn(uow); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// ApplyDelta locks userID, applies delta and commits.
func ApplyDelta(ctx context.Context, store Store, userID string, delta Delta) (UserStats, error) {
	var result UserStats
	err := WithUnitOfWork(ctx, store, func(uow UnitOfWork) error {
		if _, err := uow.Lock(ctx, userID); err != nil {
			return err
		}
		s, err := uow.ApplyDelta(ctx, userID, delta)
		if err != nil {
			return err
		}
		result = s
		return nil
	})
	return result, err
}
