package adapters

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

type pgxTxKey struct{}

type sqlTxKey struct{}

// WithPGXTx returns a context carrying the pgx transaction.
func WithPGXTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, pgxTxKey{}, tx)
}

// PGXTxFromContext returns the pgx transaction carried by ctx, if any.
func PGXTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgxTxKey{}).(pgx.Tx)
	return tx, ok
}

// WithSQLTx returns a context carrying the database/sql transaction.
func WithSQLTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, sqlTxKey{}, tx)
}

// SQLTxFromContext returns the database/sql transaction carried by ctx, if any.
func SQLTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx, ok
}
