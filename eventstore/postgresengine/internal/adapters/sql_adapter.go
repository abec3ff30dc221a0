package adapters

import (
	"context"
	"database/sql"
)

// SQLAdapter implements DBAdapter for sql.DB.
type SQLAdapter struct {
	db      *sql.DB
	replica *sql.DB // optional replica for eventually consistent reads
}

// NewSQLAdapter creates a new SQL adapter.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// NewSQLAdapterWithReplica creates a new SQL adapter with a primary and a replica database.
func NewSQLAdapterWithReplica(db *sql.DB, replica *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, replica: replica}
}

func (s *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	var rows *sql.Rows
	var err error

	switch tx, inTx := SQLTxFromContext(ctx); {
	case inTx:
		rows, err = tx.QueryContext(ctx, query)
	case readsFromReplica(ctx, s.replica != nil):
		rows, err = s.replica.QueryContext(ctx, query)
	default:
		rows, err = s.db.QueryContext(ctx, query)
	}

	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows}, nil
}

func (s *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	var result sql.Result
	var err error

	if tx, inTx := SQLTxFromContext(ctx); inTx {
		result, err = tx.ExecContext(ctx, query)
	} else {
		result, err = s.db.ExecContext(ctx, query)
	}

	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}
