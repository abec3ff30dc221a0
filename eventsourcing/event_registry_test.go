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

func Test_EventRegistry_StorableRoundTrip_KeepsIdentityPositionAndPayload(t *testing.T) {
	// setup
	registry := fixtures.NewEventRegistry()

	// arrange
	bookID := uuid.New()
	readerID := uuid.New()
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	event := fixtures.BuildBookCopyLentToReader(readerID, occurredAt)
	require.NoError(t, event.AssignAggregateID(bookID))
	require.NoError(t, event.AssignSequenceNumber(4))

	// act
	record, toErr := registry.ToStorable(fixtures.BookCopyAggregateType, event)
	restored, fromErr := registry.FromStorable(record)

	// assert
	require.NoError(t, toErr)
	require.NoError(t, fromErr)
	assert.Equal(t, fixtures.BookCopyLentToReaderEventType, record.EventType)
	assert.JSONEq(t, `{"readerId":"`+readerID.String()+`"}`, string(record.PayloadJSON))

	lent, ok := restored.(*fixtures.BookCopyLentToReader)
	require.True(t, ok)
	assert.Equal(t, event.EventID(), lent.EventID())
	assert.Equal(t, bookID, lent.AggregateID())
	assert.Equal(t, readerID, lent.ReaderID)
	assert.True(t, occurredAt.Equal(lent.OccurredAt()))

	sequenceNumber, hasSequence := lent.SequenceNumber()
	assert.True(t, hasSequence)
	assert.Equal(t, int64(4), sequenceNumber)
}

func Test_EventRegistry_ToStorable_When_EventHasNoPosition(t *testing.T) {
	// setup
	registry := fixtures.NewEventRegistry()

	// act
	_, err := registry.ToStorable(fixtures.BookCopyAggregateType, fixtures.BuildBookCopyRemovedFromCirculation(time.Now()))

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrEncodingEventFailed)
	assert.ErrorIs(t, err, eventsourcing.ErrIllegalState)
}

func Test_EventRegistry_FromStorable_When_EventTypeIsUnknown(t *testing.T) {
	// setup
	registry := eventsourcing.NewEventRegistry()

	// arrange
	record, err := eventsourcing.BuildStorableEvent(uuid.New(), "BookCopy", uuid.New(), 0, "Unknown", time.Now(), []byte(`{}`))
	require.NoError(t, err)

	// act
	_, err = registry.FromStorable(record)

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrEventStorage)
	assert.ErrorIs(t, err, eventsourcing.ErrDecodingEventFailed)
	assert.ErrorIs(t, err, eventsourcing.ErrUnknownEventType)
}

func Test_EventRegistry_Stream_DecodesLazily(t *testing.T) {
	// setup
	registry := fixtures.NewEventRegistry()

	// arrange
	bookID := uuid.New()
	good, err := eventsourcing.BuildStorableEvent(uuid.New(), "BookCopy", bookID, 0, fixtures.BookCopyRemovedFromCirculationEventType, time.Now(), []byte(`{}`))
	require.NoError(t, err)
	broken, err := eventsourcing.BuildStorableEvent(uuid.New(), "BookCopy", bookID, 1, fixtures.BookCopyLentToReaderEventType, time.Now(), []byte(`{"readerId":42}`))
	require.NoError(t, err)

	stream := registry.Stream(bookID, eventsourcing.StorableEvents{good, broken})

	// act
	first, firstErr := stream.Next()
	_, secondErr := stream.Next()

	// assert
	assert.NoError(t, firstErr)
	assert.IsType(t, &fixtures.BookCopyRemovedFromCirculation{}, first)
	assert.ErrorIs(t, secondErr, eventsourcing.ErrDecodingEventFailed)
	assert.Equal(t, bookID, stream.AggregateID())
}

func Test_BuildStorableEvent_When_PayloadIsInvalidJSON(t *testing.T) {
	// act
	_, err := eventsourcing.BuildStorableEvent(uuid.New(), "BookCopy", uuid.New(), 0, "Something", time.Now(), []byte(`{invalid`))

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrInvalidPayloadJSON)
}
