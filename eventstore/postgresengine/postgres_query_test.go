package postgresengine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/eventstore/estesthelpers"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

func givenQueryBuilder(t *testing.T) *EventStore {
	t.Helper()

	settings, err := eventstore.BuildSettings(eventstore.WithTableName("library_events"))
	require.NoError(t, err)

	return &EventStore{registry: fixtures.NewEventRegistry(), settings: settings}
}

func Test_BuildInsertQuery_GuardsTheBatchWithTheStoredMaxSequenceNumber(t *testing.T) {
	// setup
	es := givenQueryBuilder(t)
	bookID := estesthelpers.GivenUniqueID(t)
	batch, err := eventstore.CollectAppendBatch(fixtures.BookCopyAggregateType,
		estesthelpers.GivenBookCopyEvents(t, bookID, 5, 3).EventStream())
	require.NoError(t, err)
	records, err := batch.ToStorableEvents(es.registry)
	require.NoError(t, err)

	// act
	sqlQuery, err := es.buildInsertQuery(batch, records)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `INSERT INTO "library_events"`)
	assert.Contains(t, sqlQuery, `MAX("sequence_number") AS "max_seq"`)
	assert.Contains(t, sqlQuery, `"max_seq" IS NULL`)
	assert.Contains(t, sqlQuery, `"max_seq" = 4`)
	assert.Contains(t, sqlQuery, bookID.String())
	assert.Equal(t, 2, strings.Count(sqlQuery, "UNION ALL"))
	assert.Equal(t, 3, strings.Count(sqlQuery, "::jsonb"))

	for _, record := range records {
		assert.Contains(t, sqlQuery, record.EventID.String())
	}
}

func Test_BuildSelectQuery_OrdersBySequenceNumber(t *testing.T) {
	// setup
	es := givenQueryBuilder(t)
	bookID := estesthelpers.GivenUniqueID(t)

	// act
	sqlQuery, err := es.buildSelectQuery(fixtures.BookCopyAggregateType, bookID)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `FROM "library_events"`)
	assert.Contains(t, sqlQuery, `"aggregate_id" = '`+bookID.String()+`'`)
	assert.Contains(t, sqlQuery, `ORDER BY "sequence_number" ASC`)
}

func Test_IsUniqueViolation(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "pgx unique violation", err: &pgconn.PgError{Code: uniqueViolationCode}, expected: true},
		{name: "wrapped pgx unique violation", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: uniqueViolationCode}), expected: true},
		{name: "lib/pq unique violation", err: &pq.Error{Code: uniqueViolationCode}, expected: true},
		{name: "other pgx error", err: &pgconn.PgError{Code: "42P01"}, expected: false},
		{name: "plain error", err: errors.New("connection reset"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isUniqueViolation(tc.err))
		})
	}
}

func Test_CreateTableSQL_QuotesTheTableName(t *testing.T) {
	ddl := CreateTableSQL(`my"events`)

	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "my""events"`)
	assert.Contains(t, ddl, "PRIMARY KEY (aggregate_type, aggregate_id, sequence_number)")
}
