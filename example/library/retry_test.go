package library_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/example/library"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/observability/testdoubles"
)

// conflictingEventStore reports a concurrency conflict for the next conflicts appends.
type conflictingEventStore struct {
	eventsourcing.EventStore
	conflicts atomic.Int32
	appends   atomic.Int32
}

func (s *conflictingEventStore) AppendEvents(ctx context.Context, aggregateType string, events eventsourcing.EventStream) error {
	s.appends.Add(1)

	if s.conflicts.Add(-1) >= 0 {
		return &eventsourcing.ConcurrencyError{AggregateID: events.AggregateID()}
	}

	return s.EventStore.AppendEvents(ctx, aggregateType, events)
}

func givenConflictingEventStore(t *testing.T) *conflictingEventStore {
	t.Helper()

	memoryStore, err := memoryengine.NewEventStore()
	require.NoError(t, err)

	return &conflictingEventStore{EventStore: memoryStore}
}

func Test_Library_When_SavingConflictsOnce(t *testing.T) {
	// setup
	store := givenConflictingEventStore(t)
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	f := givenLibrary(t, store, nil,
		library.WithMetrics(metrics),
		library.WithRetries(library.WithBaseDelay(0)))
	bookID := givenBookCopyWasAdded(t, f.desk)

	// arrange
	store.conflicts.Store(1)

	// act
	err := f.desk.LendBookCopyToReader(context.Background(), bookID, uuid.New())

	// assert
	require.NoError(t, err)
	assert.Len(t, storedEventsOf(t, store, bookID), 2)
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric("library_command_retries_total",
		map[string]string{"operation": "lend_book_copy", "status": "conflict"}))
	assert.Equal(t, 1, metrics.CountDurationRecordsForMetric("library_command_retry_delay_seconds",
		map[string]string{"operation": "lend_book_copy", "attempt": "1"}))
}

func Test_Library_When_SavingKeepsConflicting(t *testing.T) {
	// setup
	store := givenConflictingEventStore(t)
	logger := testdoubles.NewContextualLoggerSpy(true)
	f := givenLibrary(t, store, nil,
		library.WithContextualLogger(logger),
		library.WithRetries(library.WithMaxAttempts(3), library.WithBaseDelay(0), library.WithJitterFactor(0)))
	bookID := givenBookCopyWasAdded(t, f.desk)

	// arrange
	store.conflicts.Store(100)
	store.appends.Store(0)

	// act
	err := f.desk.LendBookCopyToReader(context.Background(), bookID, uuid.New())

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrConcurrencyConflict)
	assert.Equal(t, int32(3), store.appends.Load())
	assert.True(t, logger.HasRecord("warn", "giving up after concurrency conflicts"))
	assert.Len(t, storedEventsOf(t, store, bookID), 1)
}

func Test_Library_When_TheContextIsCanceledWhileWaitingForARetry(t *testing.T) {
	// setup
	store := givenConflictingEventStore(t)
	f := givenLibrary(t, store, nil)
	bookID := givenBookCopyWasAdded(t, f.desk)

	// arrange
	store.conflicts.Store(100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	err := f.desk.LendBookCopyToReader(ctx, bookID, uuid.New())

	// assert
	assert.ErrorIs(t, err, context.Canceled)
}
