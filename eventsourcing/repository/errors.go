package repository

import "errors"

var ErrUnknownLockingStrategy = errors.New("unknown locking strategy")
var ErrNilEventStore = errors.New("event store must not be nil")
var ErrNilFactory = errors.New("aggregate factory must not be nil")
var ErrEmptyAggregateType = errors.New("empty aggregate type supplied")
var ErrInvalidCacheSize = errors.New("cache size must be positive")
var ErrPublishingFailed = errors.New("publishing committed events failed")
var ErrUnknownAggregate = errors.New("aggregate was not loaded by this repository")
var ErrCachingRequiresPessimisticLocking = errors.New("caching aggregates requires pessimistic locking")
