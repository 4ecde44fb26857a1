package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

func quietBus(async bool) *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     async,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		EnableMetrics: true,
	})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := quietBus(false)

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventMakeupHoursLogged, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewMakeupHoursLoggedEvent("MKP-1", "s1", 2, 2, 8)))
	require.NoError(t, bus.Publish(shared.NewClinicalLogAddedEvent("l1", "s1", "General", 8, false)))

	assert.Equal(t, []shared.EventType{shared.EventMakeupHoursLogged}, typed)
	assert.Equal(t, []shared.EventType{shared.EventMakeupHoursLogged, shared.EventClinicalLogAdded}, all)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := quietBus(false)
	calls := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { calls++; return nil }))

	assert.NoError(t, bus.Publish(shared.NewMakeupObligationDeletedEvent("MKP-1", "s1")))
	assert.Equal(t, 1, calls)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncDrainsOnClose(t *testing.T) {
	bus := quietBus(true)
	var (
		mu   sync.Mutex
		seen int
	)
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 25; i++ {
		require.NoError(t, bus.Publish(shared.NewClinicalLogAddedEvent("l", "s1", "General", 1, false)))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, 25, seen)
	assert.ErrorIs(t, bus.Publish(shared.NewClinicalLogAddedEvent("l", "s1", "General", 1, false)), ErrEventBusClosed)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	event := shared.NewMakeupObligationDerivedEvent("MKP-1", "s1", "ATT-1", 8, true)

	data, err := encodeEnvelope("a", event)
	require.NoError(t, err)
	env, err := decodeEnvelope(data)
	require.NoError(t, err)

	replayed := env.event()
	assert.Equal(t, "a", env.InstanceID)
	assert.Equal(t, shared.EventMakeupObligationDerived, replayed.EventType())
	assert.Equal(t, "MKP-1", replayed.AggregateID())
	assert.Equal(t, "s1", replayed.Payload()["student_id"])
	assert.Equal(t, 8.0, replayed.Payload()["hours_owed"])
}

func TestInMemoryEventBus_CountsPublishesByType(t *testing.T) {
	bus := quietBus(false)
	require.NoError(t, bus.Publish(shared.NewMakeupObligationDeletedEvent("MKP-1", "s1")))
	require.NoError(t, bus.Publish(shared.NewMakeupObligationDeletedEvent("MKP-2", "s1")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.PublishedByType[shared.EventMakeupObligationDeleted])
	assert.Zero(t, snap.TotalHandlerExecs)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := decodeEnvelope("not json")
	assert.Error(t, err)

	_, err = decodeEnvelope(`{"instance_id":"a"}`)
	assert.Error(t, err)
}

func TestNewRedisEventBusRequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(context.Background(), RedisEventBusConfig{})
	assert.Error(t, err)
}
