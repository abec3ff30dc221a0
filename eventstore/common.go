package eventstore

import (
	"errors"
)

var ErrEmptyEventsTableName = errors.New("empty events table name supplied")
var ErrNilEventRegistry = errors.New("event registry must not be nil")
var ErrEmptyAggregateType = errors.New("empty aggregate type supplied")
var ErrMixedAggregates = errors.New("events of different aggregates in one append")

// DefaultEventsTableName is used by the engines that store events in a named table or bucket.
const DefaultEventsTableName = "events"
