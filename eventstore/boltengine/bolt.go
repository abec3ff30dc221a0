package boltengine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.etcd.io/bbolt"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
)

const engineName = "bolt"

const defaultOpenTimeout = time.Second

var ErrNilDatabase = errors.New("bolt database must not be nil")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type record struct {
	EventID    uuid.UUID           `json:"eventId"`
	EventType  string              `json:"eventType"`
	OccurredAt time.Time           `json:"occurredAt"`
	Payload    jsoniter.RawMessage `json:"payload"`
}

// EventStore is an eventsourcing.EventStore on a bbolt database. It is safe for concurrent use.
type EventStore struct {
	db       *bbolt.DB
	registry *eventsourcing.EventRegistry
	settings eventstore.Settings
	root     []byte
}

// Open opens or creates the database file like bbolt.Open, waiting at most timeout for the file lock.
// A timeout of 0 waits one second.
func Open(path string, timeout time.Duration) (*bbolt.DB, error) {
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}

	return bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
}

// NewEventStore creates an EventStore on the database and creates its root bucket.
// The registry translates between events and their stored form.
func NewEventStore(db *bbolt.DB, registry *eventsourcing.EventRegistry, options ...eventstore.Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	if registry == nil {
		return nil, eventstore.ErrNilEventRegistry
	}

	settings, err := eventstore.BuildSettings(options...)
	if err != nil {
		return nil, err
	}

	es := &EventStore{db: db, registry: registry, settings: settings, root: []byte(settings.TableName)}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(es.root)
		return createErr
	})
	if err != nil {
		return nil, errors.Join(eventsourcing.ErrEventStorage, err)
	}

	return es, nil
}

// AppendEvents appends the events of one aggregate.
// Returns an error matching eventsourcing.ErrConcurrencyConflict if the first event does not directly follow
// the stored ones, in which case nothing is appended.
//
// If ctx carries a write transaction from the TransactionManager, the events are written in it.
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

	err = es.update(ctx, func(tx *bbolt.Tx) error {
		return es.appendRecords(tx, batch, records)
	})

	switch {
	case err == nil:
		op.Succeed(len(records))
		return nil

	case errors.Is(err, eventsourcing.ErrConcurrencyConflict):
		op.Conflict(err)
		return err

	default:
		err = errors.Join(eventsourcing.ErrEventStorage, err)
		op.Fail(eventstore.ErrorTypeStorage, err)

		return err
	}
}

func (es *EventStore) appendRecords(tx *bbolt.Tx, batch eventstore.AppendBatch, records eventsourcing.StorableEvents) error {
	typeBucket, err := tx.Bucket(es.root).CreateBucketIfNotExists([]byte(batch.AggregateType))
	if err != nil {
		return err
	}

	aggregateBucket, err := typeBucket.CreateBucketIfNotExists(batch.AggregateID[:])
	if err != nil {
		return err
	}

	lastStored, hasStored := int64(0), false
	if key, _ := aggregateBucket.Cursor().Last(); key != nil {
		lastStored, hasStored = decodeSequenceNumber(key), true
	}

	if err = batch.ContinuesFrom(lastStored, hasStored); err != nil {
		return err
	}

	for _, storable := range records {
		value, marshalErr := json.Marshal(record{
			EventID:    storable.EventID,
			EventType:  storable.EventType,
			OccurredAt: storable.OccurredAt,
			Payload:    storable.PayloadJSON,
		})
		if marshalErr != nil {
			return errors.Join(eventsourcing.ErrEncodingEventFailed, marshalErr)
		}

		if err = aggregateBucket.Put(encodeSequenceNumber(storable.SequenceNumber), value); err != nil {
			return err
		}
	}

	return nil
}

// ReadEvents returns the events of the aggregate in sequence order.
// Returns an error matching eventsourcing.ErrAggregateNotFound if there are none.
// The events are decoded lazily while the stream is consumed.
func (es *EventStore) ReadEvents(ctx context.Context, aggregateType string, aggregateID uuid.UUID) (eventsourcing.EventStream, error) {
	ctx, op := es.settings.Begin(ctx, engineName, eventstore.OperationRead, aggregateType, aggregateID.String())

	var records eventsourcing.StorableEvents

	err := es.view(ctx, func(tx *bbolt.Tx) error {
		typeBucket := tx.Bucket(es.root).Bucket([]byte(aggregateType))
		if typeBucket == nil {
			return nil
		}

		aggregateBucket := typeBucket.Bucket(aggregateID[:])
		if aggregateBucket == nil {
			return nil
		}

		return aggregateBucket.ForEach(func(key, value []byte) error {
			var stored record
			if unmarshalErr := json.Unmarshal(value, &stored); unmarshalErr != nil {
				return errors.Join(eventsourcing.ErrDecodingEventFailed, unmarshalErr)
			}

			storable, buildErr := eventsourcing.BuildStorableEvent(
				stored.EventID,
				aggregateType,
				aggregateID,
				decodeSequenceNumber(key),
				stored.EventType,
				stored.OccurredAt,
				stored.Payload,
			)
			if buildErr != nil {
				return errors.Join(eventsourcing.ErrDecodingEventFailed, buildErr)
			}

			records = append(records, storable)

			return nil
		})
	})

	if err != nil {
		err = errors.Join(eventsourcing.ErrEventStorage, err)
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

// AggregateCount returns the number of aggregates of the type with stored events.
func (es *EventStore) AggregateCount(aggregateType string) (int, error) {
	count := 0

	err := es.db.View(func(tx *bbolt.Tx) error {
		typeBucket := tx.Bucket(es.root).Bucket([]byte(aggregateType))
		if typeBucket == nil {
			return nil
		}

		return typeBucket.ForEach(func(_, value []byte) error {
			if value == nil {
				count++
			}

			return nil
		})
	})

	return count, err
}

func (es *EventStore) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if tx, ok := TxFromContext(ctx); ok && tx.Writable() {
		return fn(tx)
	}

	return es.db.Update(fn)
}

func (es *EventStore) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(tx)
	}

	return es.db.View(fn)
}

// signBit is flipped in the keys, so negative sequence numbers sort before positive ones.
const signBit = uint64(1) << 63

func encodeSequenceNumber(sequenceNumber int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(sequenceNumber)^signBit) //nolint:gosec // two's complement with flipped sign bit

	return key
}

func decodeSequenceNumber(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key) ^ signBit) //nolint:gosec // written by encodeSequenceNumber
}
