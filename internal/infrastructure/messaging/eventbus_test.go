package messaging

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()

	var xp, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(e shared.Event) error {
		xp = append(xp, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	now := time.Now()
	require.NoError(t, bus.Publish(shared.NewEvent(shared.EventXPGained, "u1", now, nil)))
	require.NoError(t, bus.Publish(shared.NewEvent(shared.EventBadgeEarned, "u1", now, nil)))

	assert.Equal(t, []shared.EventType{shared.EventXPGained}, xp)
	assert.Equal(t, []shared.EventType{shared.EventXPGained, shared.EventBadgeEarned}, all)
	assert.Equal(t, int64(2), bus.Metrics().TotalPublished)
}

func TestInMemoryEventBus_SyncErrorsAndPanics(t *testing.T) {
	bus := syncBus()
	boom := errors.New("boom")

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		calls++
		return boom
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		calls++
		panic("bad handler")
	}))

	err := bus.Publish(shared.NewEvent(shared.EventLevelUp, "u1", time.Now(), nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	m := bus.Metrics()
	assert.Equal(t, int64(2), m.TotalHandlerExecs)
	assert.Equal(t, int64(2), m.HandlerFailures)
}

func TestInMemoryEventBus_AsyncDeliversBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		n.Add(1)
		return nil
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewEvent(shared.EventXPGained, "u1", time.Now(), nil)))
	}
	bus.Wait()
	assert.Equal(t, int32(10), n.Load())

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewEvent(shared.EventXPGained, "u1", time.Now(), nil)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := syncBus()
	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventXPGained, nil))
}

func TestEventEnvelope_RebuildsEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	orig := shared.NewLevelUpEvent("u1", 2, 3, 300, at)

	data, err := json.Marshal(envelopeOf("inst", orig))
	require.NoError(t, err)

	var env eventEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	got := env.event()

	assert.Equal(t, orig.EventID(), got.EventID())
	assert.Equal(t, shared.EventLevelUp, got.EventType())
	assert.Equal(t, "u1", got.AggregateID())
	assert.True(t, at.Equal(got.OccurredAt()))
	assert.EqualValues(t, 3, got.Payload()["new_level"])
}
