package pgtesthelpers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper gives the tests an EventStore and its TransactionManager, whatever adapter backs them.
type Wrapper struct {
	AdapterType        string
	TableName          string
	EventStore         *postgresengine.EventStore
	TransactionManager eventhandling.TransactionManager
	exec               func(ctx context.Context, sql string) error
}

// CreateWrapper creates an EventStore with the adapter selected by ADAPTER_TYPE on a fresh events table.
// The table is dropped at cleanup. Skips the test if no database is configured.
func CreateWrapper(t testing.TB, options ...eventstore.Option) *Wrapper {
	t.Helper()

	dsn := DSN(t)
	adapterType := strings.ToLower(os.Getenv(envAdapterType))
	tableName := "events_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	options = append(options, eventstore.WithTableName(tableName))
	registry := fixtures.NewEventRegistry()

	w := &Wrapper{AdapterType: adapterType, TableName: tableName}

	var err error

	switch adapterType {
	case typePGXPool, "":
		w.AdapterType = typePGXPool
		pool := GivenPGXPool(t, dsn)
		w.exec = func(ctx context.Context, sql string) error {
			_, execErr := pool.Exec(ctx, sql)
			return execErr
		}

		w.EventStore, err = postgresengine.NewEventStoreFromPGXPool(pool, registry, options...)
		require.NoError(t, err, "error creating event store")
		w.TransactionManager, err = postgresengine.NewPGXTransactionManager(pool)
		require.NoError(t, err)

	case typeSQLDB:
		db := GivenSQLDB(t, dsn)
		w.exec = func(ctx context.Context, sql string) error {
			_, execErr := db.ExecContext(ctx, sql)
			return execErr
		}

		w.EventStore, err = postgresengine.NewEventStoreFromSQLDB(db, registry, options...)
		require.NoError(t, err, "error creating event store")
		w.TransactionManager, err = postgresengine.NewSQLTransactionManager(db)
		require.NoError(t, err)

	case typeSQLXDB:
		db := GivenSQLXDB(t, dsn)
		w.exec = func(ctx context.Context, sql string) error {
			_, execErr := db.ExecContext(ctx, sql)
			return execErr
		}

		w.EventStore, err = postgresengine.NewEventStoreFromSQLX(db, registry, options...)
		require.NoError(t, err, "error creating event store")
		w.TransactionManager, err = postgresengine.NewSQLTransactionManager(db.DB)
		require.NoError(t, err)

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	require.NoError(t, w.EventStore.EnsureSchema(context.Background()), "error creating the events table")
	t.Cleanup(func() {
		_ = w.exec(context.Background(), "DROP TABLE IF EXISTS "+pgx.Identifier{tableName}.Sanitize())
	})

	return w
}
