package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/postgresengine/internal/adapters"
)

const engineName = "postgres"

const (
	logMsgSQLExecuted     = "executed sql"
	logMsgCloseRowsFailed = "failed to close database rows"
	logAttrQuery          = "query"
	logAttrAction         = "action"
	logAttrDurationMS     = "duration_ms"
	colAggregateType      = "aggregate_type"
	colAggregateID        = "aggregate_id"
	colSequenceNumber     = "sequence_number"
	colEventID            = "event_id"
	colEventType          = "event_type"
	colOccurredAt         = "occurred_at"
	colPayload            = "payload"
	cteContext            = "context"
	cteVals               = "vals"
	dialectPostgres       = "postgres"
	aliasMaxSeq           = "max_seq"
	castText              = "?::text"
	castUUID              = "?::uuid"
	castBigint            = "?::bigint"
	castTimestamp         = "?::timestamp with time zone"
	castJsonb             = "?::jsonb"
	uniqueViolationCode   = "23505"
)

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrBuildingQueryFailed = errors.New("building the sql query failed")

var insertCols = []any{colAggregateType, colAggregateID, colSequenceNumber, colEventID, colEventType, colOccurredAt, colPayload}

// EventStore is an eventsourcing.EventStore on a PostgreSQL table. It is safe for concurrent use.
type EventStore struct {
	db       adapters.DBAdapter
	registry *eventsourcing.EventRegistry
	settings eventstore.Settings
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, registry *eventsourcing.EventRegistry, options ...eventstore.Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), registry, options...)
}

// NewEventStoreFromPGXPoolAndReplica creates a new EventStore using a primary pgx Pool and a replica pool.
// Reads go to the replica when their context was prepared with eventsourcing.WithEventualConsistency.
func NewEventStoreFromPGXPoolAndReplica(
	db *pgxpool.Pool,
	replica *pgxpool.Pool,
	registry *eventsourcing.EventRegistry,
	options ...eventstore.Option,
) (*EventStore, error) {

	if db == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(db, replica), registry, options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, registry *eventsourcing.EventRegistry, options ...eventstore.Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), registry, options...)
}

// NewEventStoreFromSQLDBAndReplica creates a new EventStore using a primary sql.DB and a replica.
func NewEventStoreFromSQLDBAndReplica(
	db *sql.DB,
	replica *sql.DB,
	registry *eventsourcing.EventRegistry,
	options ...eventstore.Option,
) (*EventStore, error) {

	if db == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapterWithReplica(db, replica), registry, options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, registry *eventsourcing.EventRegistry, options ...eventstore.Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), registry, options...)
}

func newEventStore(db adapters.DBAdapter, registry *eventsourcing.EventRegistry, options ...eventstore.Option) (*EventStore, error) {
	if registry == nil {
		return nil, eventstore.ErrNilEventRegistry
	}

	settings, err := eventstore.BuildSettings(options...)
	if err != nil {
		return nil, err
	}

	return &EventStore{db: db, registry: registry, settings: settings}, nil
}

// AppendEvents appends the events of one aggregate with a single INSERT.
//
// The INSERT only writes rows if the stored maximum sequence number of the aggregate is directly followed
// by the first event; otherwise, or if a concurrent writer inserted the same position first,
// it returns an error matching eventsourcing.ErrConcurrencyConflict and nothing is appended.
//
// If ctx carries a transaction of a TransactionManager, the statement runs in it.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateType string, events eventsourcing.EventStream) error {
	ctx, op := es.settings.Begin(ctx, engineName, eventstore.OperationAppend, aggregateType, events.AggregateID().String())

	batch, err := eventstore.CollectAppendBatch(aggregateType, events)
	if err != nil {
		op.Fail(eventstore.ErrorTypeInvalidInput, err)
		return err
	}

	if batch.IsEmpty() {
		op.Succeed(0)
		return nil
	}

	records, err := batch.ToStorableEvents(es.registry)
	if err != nil {
		op.Fail(eventstore.ErrorTypeEncode, err)
		return err
	}

	sqlQuery, err := es.buildInsertQuery(batch, records)
	if err != nil {
		op.Fail(eventstore.ErrorTypeStorage, err)
		return err
	}

	start := time.Now()
	result, execErr := es.db.Exec(ctx, sqlQuery)
	es.logQuery(ctx, sqlQuery, eventstore.OperationAppend, time.Since(start))

	if execErr != nil {
		if isUniqueViolation(execErr) {
			conflict := errors.Join(es.conflictOf(batch), execErr)
			op.Conflict(conflict)

			return conflict
		}

		execErr = errors.Join(eventsourcing.ErrEventStorage, execErr)
		op.Fail(eventstore.ErrorTypeStorage, execErr)

		return execErr
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err = errors.Join(eventsourcing.ErrEventStorage, err)
		op.Fail(eventstore.ErrorTypeStorage, err)

		return err
	}

	if rowsAffected < int64(len(records)) {
		conflict := es.conflictOf(batch)
		op.Conflict(conflict)

		return conflict
	}

	op.Succeed(len(records))

	return nil
}

// ReadEvents returns the events of the aggregate in sequence order.
// Returns an error matching eventsourcing.ErrAggregateNotFound if there are none.
func (es *EventStore) ReadEvents(ctx context.Context, aggregateType string, aggregateID uuid.UUID) (eventsourcing.EventStream, error) {
	ctx, op := es.settings.Begin(ctx, engineName, eventstore.OperationRead, aggregateType, aggregateID.String())

	sqlQuery, err := es.buildSelectQuery(aggregateType, aggregateID)
	if err != nil {
		op.Fail(eventstore.ErrorTypeStorage, err)
		return nil, err
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	es.logQuery(ctx, sqlQuery, eventstore.OperationRead, time.Since(start))

	if queryErr != nil {
		queryErr = errors.Join(eventsourcing.ErrEventStorage, queryErr)
		op.Fail(eventstore.ErrorTypeStorage, queryErr)

		return nil, queryErr
	}
	defer es.closeRows(ctx, rows)

	records, err := scanRecords(rows, aggregateType, aggregateID)
	if err != nil {
		op.Fail(eventstore.ErrorTypeStorage, err)
		return nil, err
	}

	if len(records) == 0 {
		err = fmt.Errorf("%w: %s %s", eventsourcing.ErrAggregateNotFound, aggregateType, aggregateID)
		op.Fail(eventstore.ErrorTypeNotFound, err)

		return nil, err
	}

	op.Succeed(len(records))

	return es.registry.Stream(aggregateID, records), nil
}

func scanRecords(rows adapters.DBRows, aggregateType string, aggregateID uuid.UUID) (eventsourcing.StorableEvents, error) {
	records := make(eventsourcing.StorableEvents, 0)

	var (
		eventID        uuid.UUID
		sequenceNumber int64
		eventType      string
		occurredAt     time.Time
		payload        []byte
	)

	for rows.Next() {
		if err := rows.Scan(&eventID, &sequenceNumber, &eventType, &occurredAt, &payload); err != nil {
			return nil, errors.Join(eventsourcing.ErrEventStorage, err)
		}

		record, err := eventsourcing.BuildStorableEvent(eventID, aggregateType, aggregateID, sequenceNumber, eventType, occurredAt, payload)
		if err != nil {
			return nil, errors.Join(eventsourcing.ErrEventStorage, eventsourcing.ErrDecodingEventFailed, err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(eventsourcing.ErrEventStorage, err)
	}

	return records, nil
}

func (es *EventStore) buildSelectQuery(aggregateType string, aggregateID uuid.UUID) (string, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.settings.TableName).
		Select(colEventID, colSequenceNumber, colEventType, colOccurredAt, colPayload).
		Where(goqu.Ex{colAggregateType: aggregateType, colAggregateID: aggregateID.String()}).
		Order(goqu.I(colSequenceNumber).Asc())

	sqlQuery, _, err := selectStmt.ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

// buildInsertQuery builds one INSERT for all events of the batch, guarded by the stored maximum sequence number.
func (es *EventStore) buildInsertQuery(batch eventstore.AppendBatch, records eventsourcing.StorableEvents) (string, error) {
	builder := goqu.Dialect(dialectPostgres)

	cteStmt := builder.
		From(es.settings.TableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq)).
		Where(goqu.Ex{colAggregateType: batch.AggregateType, colAggregateID: batch.AggregateID.String()})

	var valuesStmt *goqu.SelectDataset
	for _, record := range records {
		row := builder.Select(
			goqu.L(castText, record.AggregateType).As(colAggregateType),
			goqu.L(castUUID, record.AggregateID.String()).As(colAggregateID),
			goqu.L(castBigint, record.SequenceNumber).As(colSequenceNumber),
			goqu.L(castUUID, record.EventID.String()).As(colEventID),
			goqu.L(castText, record.EventType).As(colEventType),
			goqu.L(castTimestamp, record.OccurredAt).As(colOccurredAt),
			goqu.L(castJsonb, string(record.PayloadJSON)).As(colPayload),
		)

		if valuesStmt == nil {
			valuesStmt = row
			continue
		}

		valuesStmt = valuesStmt.UnionAll(row)
	}

	valsCols := make([]any, 0, len(insertCols))
	for _, col := range insertCols {
		valsCols = append(valsCols, fmt.Sprintf("%s.%s", cteVals, col))
	}

	insertStmt := builder.
		Insert(es.settings.TableName).
		Cols(insertCols...).
		With(cteContext, cteStmt).
		With(cteVals, valuesStmt).
		FromQuery(
			builder.From(cteContext, cteVals).
				Select(valsCols...).
				Where(goqu.Or(
					goqu.C(aliasMaxSeq).IsNull(),
					goqu.C(aliasMaxSeq).Eq(batch.FirstSequenceNumber-1),
				)),
		)

	sqlQuery, _, err := insertStmt.ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func (es *EventStore) conflictOf(batch eventstore.AppendBatch) error {
	return &eventsourcing.ConcurrencyError{AggregateID: batch.AggregateID, ExpectedVersion: batch.FirstSequenceNumber - 1}
}

func (es *EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		es.settings.Observer.Warn(ctx, logMsgCloseRowsFailed, eventsourcing.LogAttrError, err.Error())
	}
}

// logQuery logs SQL queries with execution time at debug level.
func (es *EventStore) logQuery(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	es.settings.Observer.Debug(ctx, logMsgSQLExecuted,
		logAttrAction, action,
		logAttrQuery, sqlQuery,
		logAttrDurationMS, eventsourcing.ToMilliseconds(duration))
}

// isUniqueViolation reports whether err is a unique violation reported by pgx or lib/pq.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}

	return false
}
