package eventhandling_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/eventstore/estesthelpers"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/observability/testdoubles"
)

func Test_SimpleEventBus_Publish_HandsEveryEventToEveryListenerInOrder(t *testing.T) {
	// setup
	bus, err := eventhandling.NewSimpleEventBus()
	require.NoError(t, err)
	first := newRecordingListener(eventhandling.FullConcurrencyPolicy{})
	second := newRecordingListener(eventhandling.SequentialPolicy{})
	require.NoError(t, bus.Subscribe(first))
	require.NoError(t, bus.Subscribe(second))
	require.NoError(t, bus.Subscribe(second))

	// arrange
	events := givenEvents(t, estesthelpers.GivenUniqueID(t), 5)

	// act
	err = bus.Publish(context.Background(), events...)

	// assert
	require.NoError(t, err)
	assert.Equal(t, events, first.Handled())
	assert.Equal(t, events, second.Handled())
}

func Test_SimpleEventBus_Publish_When_AListenerFails(t *testing.T) {
	// setup
	logger := testdoubles.NewContextualLoggerSpy(true)
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	bus, err := eventhandling.NewSimpleEventBus(eventhandling.WithContextualLogger(logger), eventhandling.WithMetrics(metrics))
	require.NoError(t, err)

	// arrange
	failing := newRecordingListener(eventhandling.SequentialPolicy{})
	failing.onHandle = func(_ context.Context, _ eventsourcing.Event) error { return errHandlerFailed }
	panicking := newRecordingListener(eventhandling.SequentialPolicy{})
	panicking.onHandle = func(_ context.Context, _ eventsourcing.Event) error { panic("boom") }
	healthy := newRecordingListener(eventhandling.SequentialPolicy{})
	require.NoError(t, bus.Subscribe(failing))
	require.NoError(t, bus.Subscribe(panicking))
	require.NoError(t, bus.Subscribe(healthy))
	events := givenEvents(t, estesthelpers.GivenUniqueID(t), 2)

	// act
	err = bus.Publish(context.Background(), events...)

	// assert
	assert.ErrorIs(t, err, errHandlerFailed)
	assert.ErrorContains(t, err, "handler panicked: boom")
	assert.Equal(t, events, healthy.Handled())
	assert.True(t, logger.HasRecord("error", "event handler failed"))
	assert.Equal(t, 4, metrics.CountCounterRecordsForMetric("eventbus_handler_failures_total", nil))
}

func Test_SimpleEventBus_Unsubscribe_StopsTheDelivery(t *testing.T) {
	// setup
	bus, err := eventhandling.NewSimpleEventBus()
	require.NoError(t, err)
	listener := newRecordingListener(eventhandling.SequentialPolicy{})
	require.NoError(t, bus.Subscribe(listener))

	// act
	bus.Unsubscribe(listener)
	err = bus.Publish(context.Background(), givenEvents(t, estesthelpers.GivenUniqueID(t), 1)...)

	// assert
	require.NoError(t, err)
	assert.Empty(t, listener.Handled())
	assert.ErrorIs(t, bus.Subscribe(nil), eventhandling.ErrNilListener)
}
