package adapters

import "context"

// DBAdapter runs the SQL built by the EventStore on one of the supported drivers.
// Queries are routed to a transaction found in the context first.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows is the common subset of pgx.Rows and *sql.Rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult reports how many events an insert stored.
type DBResult interface {
	RowsAffected() (int64, error)
}
