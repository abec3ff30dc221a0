package estesthelpers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

// RunEventStoreContract runs the engine independent EventStore tests against the stores created by newStore.
func RunEventStoreContract(t *testing.T, newStore func(t *testing.T) eventsourcing.EventStore) {
	t.Run("round trip keeps order and content", func(t *testing.T) {
		// setup
		ctx := context.Background()
		es := newStore(t)
		bookID := GivenUniqueID(t)
		container := GivenBookCopyEvents(t, bookID, 0, 3)
		appended, err := eventsourcing.ReadAll(container.EventStream())
		require.NoError(t, err)

		// act
		GivenEventsWereAppended(t, ctx, es, container)
		stream, err := es.ReadEvents(ctx, fixtures.BookCopyAggregateType, bookID)

		// assert
		require.NoError(t, err)
		assert.Equal(t, bookID, stream.AggregateID())

		read, err := eventsourcing.ReadAll(stream)
		require.NoError(t, err)
		require.Len(t, read, 3)
		assert.Equal(t, []int64{0, 1, 2}, SequenceNumbersOf(t, read))

		for i := range read {
			assert.Equal(t, appended[i].EventID(), read[i].EventID())
			assert.Equal(t, bookID, read[i].AggregateID())
			assert.True(t, appended[i].OccurredAt().Equal(read[i].OccurredAt()))
			assert.IsType(t, appended[i], read[i])
		}

		added, ok := read[0].(*fixtures.BookCopyAddedToCirculation)
		require.True(t, ok)
		assert.Equal(t, appended[0].(*fixtures.BookCopyAddedToCirculation).Title, added.Title)
	})

	t.Run("reading an unknown aggregate fails with not found", func(t *testing.T) {
		// setup
		es := newStore(t)

		// act
		_, err := es.ReadEvents(context.Background(), fixtures.BookCopyAggregateType, GivenUniqueID(t))

		// assert
		assert.ErrorIs(t, err, eventsourcing.ErrAggregateNotFound)
		assert.NotErrorIs(t, err, eventsourcing.ErrEventStorage)
	})

	t.Run("aggregate types are separate", func(t *testing.T) {
		// setup
		ctx := context.Background()
		es := newStore(t)
		bookID := GivenUniqueID(t)
		GivenEventsWereAppended(t, ctx, es, GivenBookCopyEvents(t, bookID, 0, 1))

		// act
		_, err := es.ReadEvents(ctx, "SomethingElse", bookID)

		// assert
		assert.ErrorIs(t, err, eventsourcing.ErrAggregateNotFound)
	})

	t.Run("appending a continuation", func(t *testing.T) {
		// setup
		ctx := context.Background()
		es := newStore(t)
		bookID := GivenUniqueID(t)
		GivenEventsWereAppended(t, ctx, es, GivenBookCopyEvents(t, bookID, 0, 3))

		// act
		err := es.AppendEvents(ctx, fixtures.BookCopyAggregateType, GivenBookCopyEvents(t, bookID, 3, 2).EventStream())

		// assert
		require.NoError(t, err)
		stream, err := es.ReadEvents(ctx, fixtures.BookCopyAggregateType, bookID)
		require.NoError(t, err)
		read, err := eventsourcing.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2, 3, 4}, SequenceNumbersOf(t, read))
	})

	t.Run("negative sequence numbers keep their order", func(t *testing.T) {
		// setup
		ctx := context.Background()
		es := newStore(t)
		bookID := GivenUniqueID(t)
		GivenEventsWereAppended(t, ctx, es, GivenBookCopyEvents(t, bookID, -2, 3))

		// act
		err := es.AppendEvents(ctx, fixtures.BookCopyAggregateType, GivenBookCopyEvents(t, bookID, 1, 1).EventStream())

		// assert
		require.NoError(t, err)
		stream, err := es.ReadEvents(ctx, fixtures.BookCopyAggregateType, bookID)
		require.NoError(t, err)
		read, err := eventsourcing.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, []int64{-2, -1, 0, 1}, SequenceNumbersOf(t, read))

		err = es.AppendEvents(ctx, fixtures.BookCopyAggregateType, GivenBookCopyEvents(t, bookID, -1, 1).EventStream())
		assert.ErrorIs(t, err, eventsourcing.ErrConcurrencyConflict)
	})

	t.Run("appending an already stored sequence number conflicts", func(t *testing.T) {
		// setup
		ctx := context.Background()
		es := newStore(t)
		bookID := GivenUniqueID(t)
		GivenEventsWereAppended(t, ctx, es, GivenBookCopyEvents(t, bookID, 0, 3))

		// act
		err := es.AppendEvents(ctx, fixtures.BookCopyAggregateType, GivenBookCopyEvents(t, bookID, 2, 2).EventStream())

		// assert
		assert.ErrorIs(t, err, eventsourcing.ErrConcurrencyConflict)

		stream, readErr := es.ReadEvents(ctx, fixtures.BookCopyAggregateType, bookID)
		require.NoError(t, readErr)
		read, readErr := eventsourcing.ReadAll(stream)
		require.NoError(t, readErr)
		assert.Equal(t, []int64{0, 1, 2}, SequenceNumbersOf(t, read), "nothing of the conflicting append may be stored")
	})

	t.Run("appending with a gap conflicts", func(t *testing.T) {
		// setup
		ctx := context.Background()
		es := newStore(t)
		bookID := GivenUniqueID(t)
		GivenEventsWereAppended(t, ctx, es, GivenBookCopyEvents(t, bookID, 0, 3))

		// act
		err := es.AppendEvents(ctx, fixtures.BookCopyAggregateType, GivenBookCopyEvents(t, bookID, 5, 1).EventStream())

		// assert
		var concurrencyErr *eventsourcing.ConcurrencyError
		require.ErrorAs(t, err, &concurrencyErr)
		assert.Equal(t, bookID, concurrencyErr.AggregateID)
	})

	t.Run("appending an empty stream is a no-op", func(t *testing.T) {
		// setup
		es := newStore(t)

		// act
		err := es.AppendEvents(context.Background(), fixtures.BookCopyAggregateType, eventsourcing.NewEventStream())

		// assert
		assert.NoError(t, err)
	})

	t.Run("exactly one of concurrent appends of the same sequence number wins", func(t *testing.T) {
		// setup
		ctx := context.Background()
		es := newStore(t)
		bookID := GivenUniqueID(t)
		GivenEventsWereAppended(t, ctx, es, GivenBookCopyEvents(t, bookID, 0, 1))

		const writers = 8
		containers := make([]*eventsourcing.EventContainer, writers)
		for i := range containers {
			containers[i] = GivenBookCopyEvents(t, bookID, 1, 2)
		}

		// act
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := range containers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = es.AppendEvents(ctx, fixtures.BookCopyAggregateType, containers[i].EventStream())
			}(i)
		}
		wg.Wait()

		// assert
		successes, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, eventsourcing.ErrConcurrencyConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}

		assert.Equal(t, 1, successes)
		assert.Equal(t, writers-1, conflicts)

		stream, err := es.ReadEvents(ctx, fixtures.BookCopyAggregateType, bookID)
		require.NoError(t, err)
		read, err := eventsourcing.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2}, SequenceNumbersOf(t, read))
	})
}
