package library_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/repository"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/boltengine"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/example/library"
)

var errRollback = errors.New("rollback")

func givenBoltDB(t *testing.T) *bbolt.DB {
	t.Helper()

	db, err := boltengine.Open(filepath.Join(t.TempDir(), "library.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func within(t *testing.T, stop func(ctx context.Context) error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, stop(ctx))
}

func Test_LoanCounts_When_ProjectedInBoltTransactions(t *testing.T) {
	// setup
	ctx := context.Background()
	db := givenBoltDB(t)

	store, err := boltengine.NewEventStore(db, library.NewEventRegistry())
	require.NoError(t, err)
	txManager, err := boltengine.NewTransactionManager(db)
	require.NoError(t, err)
	counters, err := library.NewBoltCounterStore(db)
	require.NoError(t, err)

	loanCounts := library.NewLoanCounts(counters)
	projection, err := eventhandling.NewTransactionalListener(library.NewLoanCountsListener(loanCounts), txManager)
	require.NoError(t, err)
	require.NoError(t, projection.Start())

	bus, err := eventhandling.NewAsyncEventBus(eventhandling.WithWorkerCount(2))
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(projection))

	repo, err := repository.NewRepository(library.BookCopyAggregateType, library.NewBookCopy, store, repository.WithEventBus(bus))
	require.NoError(t, err)
	desk, err := library.NewLibrary(repo, loanCounts)
	require.NoError(t, err)

	// arrange
	bookIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, bookID := range bookIDs {
		require.NoError(t, desk.AddBookCopy(ctx, bookID, "978-1-59327-584-6", "The Linux Command Line", "Shotts"))
	}

	reader := uuid.New()

	// act
	require.NoError(t, desk.LendBookCopyToReader(ctx, bookIDs[0], reader))
	require.NoError(t, desk.LendBookCopyToReader(ctx, bookIDs[1], reader))
	require.NoError(t, desk.ReturnBookCopyFromReader(ctx, bookIDs[0], reader))
	require.NoError(t, desk.RemoveBookCopyFromCirculation(ctx, bookIDs[2]))

	within(t, bus.Shutdown)
	within(t, projection.Stop)

	// assert
	inCirculation, err := loanCounts.InCirculation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inCirculation)

	lentOut, err := loanCounts.LentOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, lentOut)

	lentByReader, err := loanCounts.CurrentlyLentBy(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, 1, lentByReader)
	assert.Equal(t, int64(0), projection.DroppedCount())
}

func Test_BoltCounterStore_Adjust_When_TheTransactionRollsBack(t *testing.T) {
	// setup
	ctx := context.Background()
	db := givenBoltDB(t)
	txManager, err := boltengine.NewTransactionManager(db)
	require.NoError(t, err)
	counters, err := library.NewBoltCounterStore(db)
	require.NoError(t, err)

	// arrange
	require.NoError(t, counters.Adjust(ctx, "visits", 2))

	// act
	err = txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, counters.Adjust(ctx, "visits", 5))

		inTx, getErr := counters.Get(ctx, "visits")
		require.NoError(t, getErr)
		assert.Equal(t, int64(7), inTx)

		return errRollback
	})

	// assert
	assert.ErrorIs(t, err, errRollback)

	value, err := counters.Get(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, int64(2), value)
}

func Test_CounterStores_Get_When_TheCounterIsUnknown(t *testing.T) {
	// setup
	ctx := context.Background()
	boltCounters, err := library.NewBoltCounterStore(givenBoltDB(t))
	require.NoError(t, err)

	for name, store := range map[string]library.CounterStore{
		"memory": library.NewMemoryCounterStore(),
		"bolt":   boltCounters,
	} {
		t.Run(name, func(t *testing.T) {
			// act
			value, err := store.Get(ctx, "unknown")

			// assert
			require.NoError(t, err)
			assert.Zero(t, value)
		})
	}
}

func Test_NewBoltCounterStore_When_TheDatabaseIsNil(t *testing.T) {
	// act
	_, err := library.NewBoltCounterStore(nil)

	// assert
	assert.ErrorIs(t, err, library.ErrNilCounterDatabase)
}
