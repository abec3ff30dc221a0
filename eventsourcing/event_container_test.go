package eventsourcing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

func Test_EventContainer_AddEvent_AssignsIdentityAndGaplessSequenceNumbers(t *testing.T) {
	// arrange
	bookID := uuid.New()
	container := eventsourcing.NewEventContainer(bookID)

	// act
	for i := 0; i < 5; i++ {
		require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("x", time.Now())))
	}

	// assert
	events, err := eventsourcing.ReadAll(container.EventStream())
	require.NoError(t, err)
	require.Len(t, events, 5)

	for i, event := range events {
		sequenceNumber, ok := event.SequenceNumber()
		assert.True(t, ok)
		assert.Equal(t, int64(i), sequenceNumber)
		assert.Equal(t, bookID, event.AggregateID())
	}
}

func Test_EventContainer_AddEvent_When_FirstSequenceNumberWasConfigured(t *testing.T) {
	// arrange
	container := eventsourcing.NewEventContainer(uuid.New())
	require.NoError(t, container.SetFirstSequenceNumber(7))

	// act
	require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("a", time.Now())))
	require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("b", time.Now())))

	// assert
	last, ok := container.LastSequenceNumber()
	assert.True(t, ok)
	assert.Equal(t, int64(8), last)
	assert.Equal(t, 2, container.Size())
}

func Test_EventContainer_AddEvent_When_SequenceNumberIsNotTheSuccessor(t *testing.T) {
	// arrange
	bookID := uuid.New()
	container := eventsourcing.NewEventContainer(bookID)

	for i := int64(0); i <= 2; i++ {
		event := fixtures.BuildSomethingHasHappened("x", time.Now())
		require.NoError(t, event.AssignSequenceNumber(i))
		require.NoError(t, container.AddEvent(event))
	}

	tooFarAhead := fixtures.BuildSomethingHasHappened("x", time.Now())
	require.NoError(t, tooFarAhead.AssignSequenceNumber(5))

	// act
	err := container.AddEvent(tooFarAhead)

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrInvalidSequence)
	assert.Equal(t, 3, container.Size())
}

func Test_EventContainer_AddEvent_When_EventBelongsToAnotherAggregate(t *testing.T) {
	// arrange
	container := eventsourcing.NewEventContainer(uuid.New())
	foreign := fixtures.BuildSomethingHasHappened("x", time.Now())
	require.NoError(t, foreign.AssignAggregateID(uuid.New()))

	// act
	err := container.AddEvent(foreign)

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrIdentityMismatch)
	assert.Equal(t, 0, container.Size())
}

func Test_EventContainer_AddEvent_When_EventCarriesOwnAggregateID(t *testing.T) {
	// arrange
	bookID := uuid.New()
	container := eventsourcing.NewEventContainer(bookID)
	event := fixtures.BuildSomethingHasHappened("x", time.Now())
	require.NoError(t, event.AssignAggregateID(bookID))

	// act
	err := container.AddEvent(event)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 1, container.Size())
}

func Test_EventContainer_SetFirstSequenceNumber_When_EventsWereAdded(t *testing.T) {
	// arrange
	container := eventsourcing.NewEventContainer(uuid.New())
	require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("x", time.Now())))

	// act
	err := container.SetFirstSequenceNumber(10)

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrIllegalState)
}

func Test_EventContainer_EventStream_IsNotAffectedByLaterMutation(t *testing.T) {
	// arrange
	container := eventsourcing.NewEventContainer(uuid.New())
	require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("first", time.Now())))
	stream := container.EventStream()

	// act
	require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("second", time.Now())))
	container.Clear()

	// assert
	events, err := eventsourcing.ReadAll(stream)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first", events[0].(*fixtures.SomethingHasHappened).Description)
}

func Test_EventContainer_Clear_KeepsTheSequenceCounter(t *testing.T) {
	// arrange
	container := eventsourcing.NewEventContainer(uuid.New())
	require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("x", time.Now())))
	require.NoError(t, container.AddEvent(fixtures.BuildSomethingHasHappened("x", time.Now())))

	// act
	container.Clear()
	next := fixtures.BuildSomethingHasHappened("x", time.Now())
	require.NoError(t, container.AddEvent(next))

	// assert
	sequenceNumber, _ := next.SequenceNumber()
	assert.Equal(t, int64(2), sequenceNumber)
	assert.Equal(t, 1, container.Size())
}

func Test_EventBase_Assignments_AreAllowedOnlyOnce(t *testing.T) {
	// arrange
	event := fixtures.BuildSomethingHasHappened("x", time.Now())
	require.NoError(t, event.AssignAggregateID(uuid.New()))
	require.NoError(t, event.AssignSequenceNumber(3))

	// act
	aggregateIDErr := event.AssignAggregateID(uuid.New())
	sequenceErr := event.AssignSequenceNumber(4)

	// assert
	assert.ErrorIs(t, aggregateIDErr, eventsourcing.ErrAggregateIDAlreadyAssigned)
	assert.ErrorIs(t, sequenceErr, eventsourcing.ErrSequenceNumberAlreadyAssigned)

	sequenceNumber, _ := event.SequenceNumber()
	assert.Equal(t, int64(3), sequenceNumber)
}

func Test_EventStream_IsSinglePass(t *testing.T) {
	// arrange
	bookID := uuid.New()
	event := fixtures.BuildSomethingHasHappened("x", time.Now())
	require.NoError(t, event.AssignAggregateID(bookID))
	stream := eventsourcing.NewEventStream(event)

	// act
	first, firstErr := stream.Next()
	_, secondErr := stream.Next()

	// assert
	assert.NoError(t, firstErr)
	assert.Same(t, event, first)
	assert.ErrorIs(t, secondErr, eventsourcing.ErrStreamExhausted)
	assert.False(t, stream.HasNext())
	assert.Equal(t, bookID, stream.AggregateID())
}
