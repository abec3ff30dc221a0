package pgtesthelpers

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/require"
)

const (
	envDSN                    = "EVENTSOURCING_POSTGRES_DSN"
	envReplicaDSN             = "EVENTSOURCING_POSTGRES_REPLICA_DSN"
	envAdapterType            = "ADAPTER_TYPE"
	driverName                = "postgres"
	defaultMaxConnections     = 10
	defaultMinConnections     = 2
	defaultMaxConnLifetime    = time.Hour
	defaultMaxConnIdleTime    = time.Minute * 5
	defaultHealthCheckPeriod  = time.Minute
	defaultConnectTimeout     = time.Second * 5
	defaultMaxIdleConnections = 2
)

// DSN returns the DSN of the test database and skips the test if it is not configured.
func DSN(t testing.TB) string {
	t.Helper()

	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("%s is not set", envDSN)
	}

	return dsn
}

// ReplicaDSN returns the DSN of the replica database and skips the test if it is not configured.
func ReplicaDSN(t testing.TB) string {
	t.Helper()

	dsn := os.Getenv(envReplicaDSN)
	if dsn == "" {
		t.Skipf("%s is not set", envReplicaDSN)
	}

	return dsn
}

// GivenPGXPool connects a pgxpool.Pool that is closed at cleanup.
func GivenPGXPool(t testing.TB, dsn string) *pgxpool.Pool {
	t.Helper()

	dbConfig, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	require.NoError(t, err, "error connecting to DB pool in test setup")
	t.Cleanup(pool.Close)

	return pool
}

// GivenSQLDB opens a *sql.DB with the lib/pq driver that is closed at cleanup.
func GivenSQLDB(t testing.TB, dsn string) *sql.DB {
	t.Helper()

	db, err := sql.Open(driverName, dsn)
	require.NoError(t, err)
	configurePool(db)
	require.NoError(t, db.PingContext(context.Background()), "error pinging the database in test setup")
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// GivenSQLXDB opens a *sqlx.DB with the lib/pq driver that is closed at cleanup.
func GivenSQLXDB(t testing.TB, dsn string) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open(driverName, dsn)
	require.NoError(t, err)
	configurePool(db.DB)
	require.NoError(t, db.PingContext(context.Background()), "error pinging the database in test setup")
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(defaultMaxConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}
