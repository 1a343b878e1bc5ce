package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/badge"
	"github.com/alem-hub/practice-hub/internal/domain/curriculum"
	"github.com/alem-hub/practice-hub/internal/domain/shared"
	"github.com/alem-hub/practice-hub/internal/domain/stats"
	"github.com/alem-hub/practice-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/practice-hub/pkg/timeutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type featureSet map[string]bool

func (f featureSet) Enabled(feature, _ string) bool {
	on, ok := f[feature]
	return !ok || on
}

type fixture struct {
	engine *Engine
	store  *memory.Store
	clock  *testClock
	events *recorder
}

func testBadges(t *testing.T) *badge.Catalog {
	t.Helper()
	c, err := badge.NewCatalog([]badge.Badge{
		{Key: "first_session", Criteria: badge.PracticeSessions{Min: 1}, XPReward: 20, GemReward: 5},
		{Key: "xp_100", Criteria: badge.TotalXP{Min: 100}, XPReward: 0, GemReward: 10},
		{Key: "streak_3", Criteria: badge.Streak{Min: 3}, XPReward: 30, GemReward: 10},
	})
	require.NoError(t, err)
	return c
}

func testCurriculum(t *testing.T) *curriculum.Catalog {
	t.Helper()
	c, err := curriculum.NewCatalog([]curriculum.Focus{
		{ID: 1, FocusOrder: 1, Title: "Major Scales"},
		{ID: 2, FocusOrder: 2, Title: "Major Arpeggios"},
	})
	require.NoError(t, err)
	return c
}

// newFixture builds an engine over a fresh memory store in UTC with the
// clock at 2026-03-02 18:00.
func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)}
	policy := DefaultPolicy(timeutil.UTC)
	store := memory.NewStore(policy.Stats, memory.WithClock(clock.Now))
	events := &recorder{}

	all := append([]EngineOption{WithClock(clock.Now), WithPublisher(events)}, opts...)
	engine := NewEngine(store,
		badge.NewEvaluator(testBadges(t)),
		curriculum.NewMachine(testCurriculum(t)),
		policy, all...)
	return &fixture{engine: engine, store: store, clock: clock, events: events}
}

func (f *fixture) stats(t *testing.T, userID string) stats.UserStats {
	t.Helper()
	s, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func (f *fixture) record(t *testing.T, userID string, minutes int) *RecordSessionResult {
	t.Helper()
	res, err := NewRecordSessionHandler(f.engine).Handle(context.Background(), RecordSessionCommand{
		UserID:          userID,
		ItemID:          "scales",
		DurationMinutes: minutes,
		SentimentScore:  1,
	})
	require.NoError(t, err)
	return res
}

// seed applies a delta directly, bypassing command rules.
func (f *fixture) seed(t *testing.T, userID string, delta stats.Delta) {
	t.Helper()
	_, err := stats.ApplyDelta(context.Background(), f.store, userID, delta)
	require.NoError(t, err)
}

// completeFocus marks every key of focusID complete.
func (f *fixture) completeFocus(t *testing.T, userID string, focusID int) {
	t.Helper()
	h := NewMarkStepCompleteHandler(f.engine)
	for _, k := range curriculum.Keys() {
		_, err := h.Handle(context.Background(), MarkStepCompleteCommand{
			UserID:  userID,
			StepID:  curriculum.NewStepID(focusID, k),
			FocusID: focusID,
		})
		require.NoError(t, err)
	}
}

func date(y int, m time.Month, d int) *timeutil.Date {
	v := timeutil.NewDate(y, m, d)
	return &v
}
