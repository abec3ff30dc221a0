package repository

import (
	"errors"

	lru "github.com/hashicorp/golang-lru"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// CachingRepository keeps recently saved aggregates in an LRU cache and hands out the cached instance on Load,
// so their history is not read and replayed again.
//
// Cached instances are shared between owners, so it requires the PessimisticLockManager.
// Load reads the cache only after the lock is held, and Save updates or evicts the cached instance
// before the lock is released.
type CachingRepository[T eventsourcing.Aggregate] struct {
	*Repository[T]
}

// NewCachingRepository creates a CachingRepository holding at most cacheSize aggregates.
//
// Returns ErrInvalidCacheSize for a cacheSize below 1 and ErrCachingRequiresPessimisticLocking
// if the options do not select the PessimisticLockManager.
func NewCachingRepository[T eventsourcing.Aggregate](
	aggregateType string,
	factory Factory[T],
	store eventsourcing.EventStore,
	cacheSize int,
	options ...Option,
) (*CachingRepository[T], error) {

	if cacheSize <= 0 {
		return nil, ErrInvalidCacheSize
	}

	repo, err := NewRepository(aggregateType, factory, store, options...)
	if err != nil {
		return nil, err
	}

	if _, ok := repo.lockManager.(*PessimisticLockManager); !ok {
		return nil, ErrCachingRequiresPessimisticLocking
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Join(ErrInvalidCacheSize, err)
	}

	repo.cache = cache

	return &CachingRepository[T]{Repository: repo}, nil
}

// Purge empties the cache.
func (r *CachingRepository[T]) Purge() {
	r.cache.Purge()
}

// CachedCount returns the number of cached aggregates.
func (r *CachingRepository[T]) CachedCount() int {
	return r.cache.Len()
}
