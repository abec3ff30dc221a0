package eventhandling

import (
	"context"
)

// YieldPolicy tells a TransactionalListener what to do after a transaction.
type YieldPolicy int

const (
	// YieldAfterTransaction lets other goroutines run before the next batch is started.
	YieldAfterTransaction YieldPolicy = iota
	// DoNotYield starts the next batch right away.
	DoNotYield
)

func (p YieldPolicy) String() string {
	if p == DoNotYield {
		return "do_not_yield"
	}

	return "yield_after_transaction"
}

// TransactionStatus describes the transaction a batch of events is handled in.
// Handlers get it from their context with TransactionStatusFromContext and may ask to end the transaction early.
//
// It is used by one goroutine at a time and not safe for concurrent use.
type TransactionStatus struct {
	eventsInTransaction  int
	eventsSinceLastYield int
	maxTransactionSize   int
	yieldPolicy          YieldPolicy
}

// NewTransactionStatus creates a status for transactions of at most maxTransactionSize events.
func NewTransactionStatus(maxTransactionSize int) *TransactionStatus {
	return &TransactionStatus{maxTransactionSize: maxTransactionSize}
}

// RecordEventProcessed counts an event handled in the current transaction.
func (s *TransactionStatus) RecordEventProcessed() {
	s.eventsInTransaction++
	s.eventsSinceLastYield++
}

// ResetTransactionStatus starts counting a new transaction. The count since the last yield is kept.
func (s *TransactionStatus) ResetTransactionStatus() {
	s.eventsInTransaction = 0
}

func (s *TransactionStatus) recordYield() {
	s.eventsSinceLastYield = 0
}

// EventsProcessedInTransaction returns the number of events handled in the running transaction.
func (s *TransactionStatus) EventsProcessedInTransaction() int {
	return s.eventsInTransaction
}

// EventsProcessedSinceLastYield returns the number of events handled since the worker last yielded.
func (s *TransactionStatus) EventsProcessedSinceLastYield() int {
	return s.eventsSinceLastYield
}

// MaxTransactionSize returns the number of events after which the transaction is committed.
func (s *TransactionStatus) MaxTransactionSize() int {
	return s.maxTransactionSize
}

// SetMaxTransactionSize changes the commit threshold of the running transaction.
func (s *TransactionStatus) SetMaxTransactionSize(maxTransactionSize int) {
	s.maxTransactionSize = maxTransactionSize
}

// YieldPolicy returns the policy applied when the transaction ends.
func (s *TransactionStatus) YieldPolicy() YieldPolicy {
	return s.yieldPolicy
}

// SetYieldPolicy changes the policy applied when the transaction ends.
func (s *TransactionStatus) SetYieldPolicy(policy YieldPolicy) {
	s.yieldPolicy = policy
}

// RequestImmediateCommit ends the transaction after the current event.
func (s *TransactionStatus) RequestImmediateCommit() {
	s.maxTransactionSize = 0
}

// RequestImmediateYield ends the transaction after the current event and yields afterward.
func (s *TransactionStatus) RequestImmediateYield() {
	s.maxTransactionSize = 0
	s.yieldPolicy = YieldAfterTransaction
}

// IsTransactionSizeReached reports whether the transaction must be committed now.
func (s *TransactionStatus) IsTransactionSizeReached() bool {
	return s.eventsInTransaction >= s.maxTransactionSize
}

type transactionStatusKey struct{}

// WithTransactionStatus returns a context carrying the status.
func WithTransactionStatus(ctx context.Context, status *TransactionStatus) context.Context {
	return context.WithValue(ctx, transactionStatusKey{}, status)
}

// TransactionStatusFromContext returns the status of the transaction the handler runs in, if any.
func TransactionStatusFromContext(ctx context.Context) (*TransactionStatus, bool) {
	status, ok := ctx.Value(transactionStatusKey{}).(*TransactionStatus)
	return status, ok
}

// TransactionManager runs fn in a transaction, committing if it returns nil and rolling back otherwise.
type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionManagerFunc adapts a function to a TransactionManager.
type TransactionManagerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction calls f(ctx, fn).
func (f TransactionManagerFunc) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}
