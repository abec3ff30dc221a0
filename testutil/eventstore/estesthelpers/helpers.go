package estesthelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

// GivenUniqueID returns a fresh aggregate id.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id
}

// GivenBookCopyEvents returns count events of the book copy, numbered from firstSequenceNumber on.
// The first event of a run starting at 0 adds the copy to circulation, the rest alternate lending and returning.
func GivenBookCopyEvents(t testing.TB, bookID uuid.UUID, firstSequenceNumber int64, count int) *eventsourcing.EventContainer {
	container := eventsourcing.NewEventContainer(bookID)
	require.NoError(t, container.SetFirstSequenceNumber(firstSequenceNumber), "error in arranging test data")

	readerID := uuid.New()
	occurredAt := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < count; i++ {
		var event eventsourcing.Event

		switch sequenceNumber := firstSequenceNumber + int64(i); {
		case sequenceNumber == 0:
			event = fixtures.BuildBookCopyAddedToCirculation("978-1-098-13934-1", fmt.Sprintf("Title %s", bookID), occurredAt)
		case sequenceNumber%2 == 1:
			event = fixtures.BuildBookCopyLentToReader(readerID, occurredAt)
		default:
			event = fixtures.BuildBookCopyReturnedByReader(readerID, occurredAt)
		}

		require.NoError(t, container.AddEvent(event), "error in arranging test data")
	}

	return container
}

// GivenEventsWereAppended appends the container's events as BookCopy events and fails the test on error.
func GivenEventsWereAppended(t testing.TB, ctx context.Context, es eventsourcing.EventStore, container *eventsourcing.EventContainer) {
	err := es.AppendEvents(ctx, fixtures.BookCopyAggregateType, container.EventStream())
	require.NoError(t, err, "error in arranging test data")
}

// SequenceNumbersOf returns the sequence numbers of the events in order.
func SequenceNumbersOf(t testing.TB, events []eventsourcing.Event) []int64 {
	sequenceNumbers := make([]int64, 0, len(events))

	for _, event := range events {
		sequenceNumber, ok := event.SequenceNumber()
		require.True(t, ok)

		sequenceNumbers = append(sequenceNumbers, sequenceNumber)
	}

	return sequenceNumbers
}
