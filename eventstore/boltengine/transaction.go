package boltengine

import (
	"context"

	"go.etcd.io/bbolt"
)

type txKey struct{}

// WithTx returns a context carrying the transaction. The EventStore and TxFromContext pick it up.
func WithTx(ctx context.Context, tx *bbolt.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction the caller runs in, if any.
func TxFromContext(ctx context.Context) (*bbolt.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*bbolt.Tx)
	return tx, ok
}

// TransactionManager runs functions in a bbolt write transaction. It implements eventhandling.TransactionManager.
type TransactionManager struct {
	db *bbolt.DB
}

// NewTransactionManager creates a TransactionManager for the database.
func NewTransactionManager(db *bbolt.DB) (*TransactionManager, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	return &TransactionManager{db: db}, nil
}

// RunInTransaction commits if fn returns nil and rolls back otherwise.
// Called with a context that already carries a write transaction, fn joins it.
func (m *TransactionManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := TxFromContext(ctx); ok && tx.Writable() {
		return fn(ctx)
	}

	return m.db.Update(func(tx *bbolt.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}
