package library

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/postgresengine"
)

const (
	createCounterTableSQL = `CREATE TABLE IF NOT EXISTS loan_counts (name TEXT PRIMARY KEY, value BIGINT NOT NULL)`
	adjustCounterSQL      = `INSERT INTO loan_counts (name, value) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET value = loan_counts.value + EXCLUDED.value`
	selectCounterSQL = `SELECT value FROM loan_counts WHERE name = $1`
)

var ErrNilCounterPool = errors.New("counter pool must not be nil")

// PostgresCounterStore keeps the counters in the loan_counts table.
// Adjust joins the transaction of a postgresengine.PGXTransactionManager found in the context.
type PostgresCounterStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCounterStore creates a PostgresCounterStore on the pool.
func NewPostgresCounterStore(pool *pgxpool.Pool) (*PostgresCounterStore, error) {
	if pool == nil {
		return nil, ErrNilCounterPool
	}

	return &PostgresCounterStore{pool: pool}, nil
}

// EnsureSchema creates the counter table if it does not exist.
func (s *PostgresCounterStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createCounterTableSQL)
	return err
}

// Adjust upserts the named counter, inside the transaction of ctx if there is one.
func (s *PostgresCounterStore) Adjust(ctx context.Context, name string, delta int64) error {
	if tx, ok := postgresengine.PGXTxFromContext(ctx); ok {
		_, err := tx.Exec(ctx, adjustCounterSQL, name, delta)
		return err
	}

	_, err := s.pool.Exec(ctx, adjustCounterSQL, name, delta)

	return err
}

// Get returns the named counter, 0 if it was never adjusted.
func (s *PostgresCounterStore) Get(ctx context.Context, name string) (int64, error) {
	var value int64

	err := s.pool.QueryRow(ctx, selectCounterSQL, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}

	return value, err
}
