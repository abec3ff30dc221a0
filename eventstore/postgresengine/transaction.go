package postgresengine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/postgresengine/internal/adapters"
)

// PGXTransactionManager runs units of work in pgx transactions.
// The EventStore created from the same pool runs its statements in the transaction carried by the context.
type PGXTransactionManager struct {
	pool *pgxpool.Pool
}

// NewPGXTransactionManager creates a PGXTransactionManager on the pool.
func NewPGXTransactionManager(pool *pgxpool.Pool) (*PGXTransactionManager, error) {
	if pool == nil {
		return nil, ErrNilDatabaseConnection
	}

	return &PGXTransactionManager{pool: pool}, nil
}

// RunInTransaction runs fn in a new transaction and commits it if fn succeeds.
// If ctx already carries a transaction, fn joins it.
func (m *PGXTransactionManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := adapters.PGXTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err = fn(adapters.WithPGXTx(ctx, tx)); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}

		return err
	}

	return tx.Commit(ctx)
}

// PGXTxFromContext returns the transaction of a PGXTransactionManager carried by ctx.
// Projections use it to write their own tables in the same transaction.
func PGXTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	return adapters.PGXTxFromContext(ctx)
}

// SQLTransactionManager runs units of work in database/sql transactions.
// It serves the EventStores created from a sql.DB or from an sqlx.DB on the same database.
type SQLTransactionManager struct {
	db *sql.DB
}

// NewSQLTransactionManager creates a SQLTransactionManager on the database.
// For an sqlx.DB, pass its embedded DB.
func NewSQLTransactionManager(db *sql.DB) (*SQLTransactionManager, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return &SQLTransactionManager{db: db}, nil
}

// RunInTransaction runs fn in a new transaction and commits it if fn succeeds.
// If ctx already carries a transaction, fn joins it.
func (m *SQLTransactionManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := adapters.SQLTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err = fn(adapters.WithSQLTx(ctx, tx)); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}

		return err
	}

	return tx.Commit()
}

// SQLTxFromContext returns the transaction of a SQLTransactionManager carried by ctx.
func SQLTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	return adapters.SQLTxFromContext(ctx)
}
