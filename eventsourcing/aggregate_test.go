package eventsourcing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

func givenHistory(t *testing.T, bookID uuid.UUID, events ...eventsourcing.Event) eventsourcing.EventStream {
	t.Helper()

	for i, event := range events {
		require.NoError(t, event.(interface{ AssignAggregateID(uuid.UUID) error }).AssignAggregateID(bookID))
		require.NoError(t, event.(interface{ AssignSequenceNumber(int64) error }).AssignSequenceNumber(int64(i)))
	}

	return eventsourcing.NewEventStream(events...)
}

func Test_AggregateRoot_Apply_FoldsSynchronously(t *testing.T) {
	// arrange
	book := fixtures.NewBookCopy(uuid.New())
	readerID := uuid.New()

	// act
	require.NoError(t, book.AddToCirculation("978-0134190440", "The Go Programming Language", time.Now()))
	require.NoError(t, book.LendToReader(readerID, time.Now()))

	// assert
	assert.True(t, book.InCirculation)
	assert.Equal(t, readerID, book.LentTo)
	assert.Equal(t, 2, book.UncommittedEventCount())

	_, hasCommitted := book.LastCommittedSequenceNumber()
	assert.False(t, hasCommitted)
}

func Test_AggregateRoot_InitializeState_ContinuesTheSequenceAfterTheHistory(t *testing.T) {
	// arrange
	bookID := uuid.New()
	readerID := uuid.New()
	history := givenHistory(t, bookID,
		fixtures.BuildBookCopyAddedToCirculation("isbn", "title", time.Now()),
		fixtures.BuildBookCopyLentToReader(readerID, time.Now()),
		fixtures.BuildBookCopyReturnedByReader(readerID, time.Now()),
	)
	book := fixtures.NewBookCopy(bookID)

	// act
	err := book.InitializeState(history)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, book.TimesLent)

	last, ok := book.LastCommittedSequenceNumber()
	assert.True(t, ok)
	assert.Equal(t, int64(2), last)

	require.NoError(t, book.RemoveFromCirculation(time.Now()))
	events, err := eventsourcing.ReadAll(book.UncommittedEvents())
	require.NoError(t, err)
	require.Len(t, events, 1)

	sequenceNumber, _ := events[0].SequenceNumber()
	assert.Equal(t, int64(3), sequenceNumber)
}

func Test_AggregateRoot_InitializeState_When_CalledTwice(t *testing.T) {
	// arrange
	bookID := uuid.New()
	book := fixtures.NewBookCopy(bookID)
	require.NoError(t, book.InitializeState(givenHistory(t, bookID, fixtures.BuildBookCopyAddedToCirculation("isbn", "title", time.Now()))))

	// act
	err := book.InitializeState(eventsourcing.NewEventStream())

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrAlreadyInitialized)
}

func Test_AggregateRoot_InitializeState_When_EventsWereAlreadyApplied(t *testing.T) {
	// arrange
	bookID := uuid.New()
	book := fixtures.NewBookCopy(bookID)
	require.NoError(t, book.AddToCirculation("isbn", "title", time.Now()))

	// act
	err := book.InitializeState(givenHistory(t, bookID, fixtures.BuildBookCopyAddedToCirculation("isbn", "title", time.Now())))

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrAlreadyInitialized)
}

func Test_AggregateRoot_Apply_When_NoHandlerExists(t *testing.T) {
	// arrange
	book := fixtures.NewBookCopy(uuid.New())
	unknown := fixtures.BuildSomethingHasHappened("surprise", time.Now())

	// act
	err := book.Apply(unknown)

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrUnhandledEvent)

	var unhandledErr *eventsourcing.UnhandledEventError
	require.True(t, errors.As(err, &unhandledErr))
	assert.Same(t, unknown, unhandledErr.Event)
}

func Test_AggregateRoot_CommitEvents_ClearsUncommittedAndRecordsLastCommitted(t *testing.T) {
	// arrange
	book := fixtures.NewBookCopy(uuid.New())
	require.NoError(t, book.AddToCirculation("isbn", "title", time.Now()))
	require.NoError(t, book.LendToReader(uuid.New(), time.Now()))

	// act
	book.CommitEvents()

	// assert
	assert.Equal(t, 0, book.UncommittedEventCount())

	last, ok := book.LastCommittedSequenceNumber()
	assert.True(t, ok)
	assert.Equal(t, int64(1), last)
}
