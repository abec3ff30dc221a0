package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a new SQLX adapter.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Query executes a query in the transaction of ctx or on the sqlx.DB and returns wrapped rows.
func (s *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	if tx, inTx := SQLTxFromContext(ctx); inTx {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}

		return &stdRows{rows: rows}, nil
	}

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows.Rows}, nil
}

// Exec executes a statement in the transaction of ctx or on the sqlx.DB and returns wrapped result.
func (s *SQLXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
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
