package library

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
)

const (
	counterInCirculation = "in_circulation"
	counterLentOut       = "lent_out"
	readerCounterPrefix  = "reader:"
	lendingCommitSize    = 20
)

// CounterStore keeps the named counters of the loan projection.
type CounterStore interface {
	// Adjust adds delta to the counter. It joins the transaction carried by ctx, if the store supports one.
	Adjust(ctx context.Context, name string, delta int64) error
	Get(ctx context.Context, name string) (int64, error)
}

// LoanCounts is a projection of how many book copies are in circulation, lent out, and lent per reader.
type LoanCounts struct {
	store CounterStore
}

// NewLoanCounts creates the projection on the counter store.
func NewLoanCounts(store CounterStore) *LoanCounts {
	return &LoanCounts{store: store}
}

var loanCountsHandlers = buildLoanCountsHandlers()

func buildLoanCountsHandlers() *eventsourcing.HandlerTable[*LoanCounts] {
	table := eventsourcing.NewHandlerTable[*LoanCounts]()

	eventsourcing.On(table, func(ctx context.Context, c *LoanCounts, _ *BookCopyAddedToCirculation) error {
		return c.store.Adjust(ctx, counterInCirculation, 1)
	})

	eventsourcing.On(table, func(ctx context.Context, c *LoanCounts, e *BookCopyLentToReader) error {
		if err := c.store.Adjust(ctx, counterLentOut, 1); err != nil {
			return err
		}

		return c.store.Adjust(ctx, readerCounter(e.ReaderID), 1)
	}, eventsourcing.WithCommitThreshold(lendingCommitSize))

	eventsourcing.On(table, func(ctx context.Context, c *LoanCounts, e *BookCopyReturnedByReader) error {
		if err := c.store.Adjust(ctx, counterLentOut, -1); err != nil {
			return err
		}

		return c.store.Adjust(ctx, readerCounter(e.ReaderID), -1)
	}, eventsourcing.WithCommitThreshold(lendingCommitSize))

	// Removals are rare, their batch is committed right away.
	eventsourcing.On(table, func(ctx context.Context, c *LoanCounts, _ *BookCopyRemovedFromCirculation) error {
		if status, ok := eventhandling.TransactionStatusFromContext(ctx); ok {
			status.RequestImmediateCommit()
		}

		return c.store.Adjust(ctx, counterInCirculation, -1)
	})

	return table
}

// NewLoanCountsListener adapts the projection for an event bus. Events of one book copy are handled in order.
func NewLoanCountsListener(counts *LoanCounts) *eventhandling.ListenerAdapter[*LoanCounts] {
	return eventhandling.NewListenerAdapter(counts, loanCountsHandlers, eventhandling.SequentialPerAggregatePolicy{})
}

// CurrentlyLentBy returns the number of book copies the reader has lent.
func (c *LoanCounts) CurrentlyLentBy(ctx context.Context, readerID uuid.UUID) (int, error) {
	n, err := c.store.Get(ctx, readerCounter(readerID))
	return int(n), err
}

// InCirculation returns the number of book copies in circulation.
func (c *LoanCounts) InCirculation(ctx context.Context) (int, error) {
	n, err := c.store.Get(ctx, counterInCirculation)
	return int(n), err
}

// LentOut returns the number of book copies lent to readers.
func (c *LoanCounts) LentOut(ctx context.Context) (int, error) {
	n, err := c.store.Get(ctx, counterLentOut)
	return int(n), err
}

func readerCounter(readerID uuid.UUID) string {
	return readerCounterPrefix + readerID.String()
}

// MemoryCounterStore keeps the counters in a map. It has no transactions.
type MemoryCounterStore struct {
	mu       sync.RWMutex
	counters map[string]int64
}

// NewMemoryCounterStore creates an empty MemoryCounterStore.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]int64)}
}

// Adjust adds delta to the named counter.
func (s *MemoryCounterStore) Adjust(_ context.Context, name string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[name] += delta

	return nil
}

// Get returns the named counter, 0 if it was never adjusted.
func (s *MemoryCounterStore) Get(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counters[name], nil
}
