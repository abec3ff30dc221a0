package library

import (
	"context"
	"encoding/binary"
	"errors"

	"go.etcd.io/bbolt"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/boltengine"
)

const counterBucket = "loan_counts"

var ErrNilCounterDatabase = errors.New("counter database must not be nil")

// BoltCounterStore keeps the counters in a bucket of the bolt database the events live in,
// so a boltengine.TransactionManager commits them together with the listener's batch.
type BoltCounterStore struct {
	db *bbolt.DB
}

// NewBoltCounterStore creates a BoltCounterStore on the database.
func NewBoltCounterStore(db *bbolt.DB) (*BoltCounterStore, error) {
	if db == nil {
		return nil, ErrNilCounterDatabase
	}

	return &BoltCounterStore{db: db}, nil
}

// Adjust adds delta to the named counter, inside the transaction of ctx if there is one.
func (s *BoltCounterStore) Adjust(ctx context.Context, name string, delta int64) error {
	adjust := func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(counterBucket))
		if err != nil {
			return err
		}

		return bucket.Put([]byte(name), encodeCounter(decodeCounter(bucket.Get([]byte(name)))+delta))
	}

	if tx, ok := boltengine.TxFromContext(ctx); ok && tx.Writable() {
		return adjust(tx)
	}

	return s.db.Update(adjust)
}

// Get returns the named counter, 0 if it was never adjusted.
func (s *BoltCounterStore) Get(ctx context.Context, name string) (int64, error) {
	var value int64

	get := func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte(counterBucket)); bucket != nil {
			value = decodeCounter(bucket.Get([]byte(name)))
		}

		return nil
	}

	if tx, ok := boltengine.TxFromContext(ctx); ok {
		return value, get(tx)
	}

	err := s.db.View(get)

	return value, err
}

func encodeCounter(value int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(value))

	return buf
}

func decodeCounter(raw []byte) int64 {
	if len(raw) != 8 {
		return 0
	}

	return int64(binary.BigEndian.Uint64(raw))
}
