package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

const createTableTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
    aggregate_type  TEXT        NOT NULL,
    aggregate_id    UUID        NOT NULL,
    sequence_number BIGINT      NOT NULL,
    event_id        UUID        NOT NULL UNIQUE,
    event_type      TEXT        NOT NULL,
    occurred_at     TIMESTAMPTZ NOT NULL,
    payload         JSONB       NOT NULL,
    global_position BIGSERIAL   NOT NULL,
    PRIMARY KEY (aggregate_type, aggregate_id, sequence_number)
)`

// CreateTableSQL returns the DDL for the events table.
// The primary key doubles as the index for reading the events of one aggregate.
func CreateTableSQL(tableName string) string {
	return fmt.Sprintf(createTableTemplate, pgx.Identifier{tableName}.Sanitize())
}

// EnsureSchema creates the events table if it does not exist yet.
func (es *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := es.db.Exec(ctx, CreateTableSQL(es.settings.TableName)); err != nil {
		return errors.Join(eventsourcing.ErrEventStorage, err)
	}

	return nil
}

// TruncateTable deletes all events. It is meant for tests.
func (es *EventStore) TruncateTable(ctx context.Context) error {
	if _, err := es.db.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{es.settings.TableName}.Sanitize()); err != nil {
		return errors.Join(eventsourcing.ErrEventStorage, err)
	}

	return nil
}
