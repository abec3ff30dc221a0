package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// Factory creates an empty aggregate shell with the given id, ready for InitializeState.
type Factory[T eventsourcing.Aggregate] func(aggregateID uuid.UUID) T

// Repository loads and saves aggregates of one type. It is safe for concurrent use.
//
// T must be a pointer type, since loaded instances are tracked by identity until they are saved or discarded.
type Repository[T eventsourcing.Aggregate] struct {
	aggregateType string
	factory       Factory[T]
	store         eventsourcing.EventStore
	eventBus      eventsourcing.EventBus
	lockManager   LockManager
	strategy      LockingStrategy
	observer      eventsourcing.Observer
	trackOwners   bool
	owners        sync.Map // T -> LockOwner
	cache         *lru.Cache
}

// NewRepository creates a Repository for the aggregate type with optional configuration.
func NewRepository[T eventsourcing.Aggregate](
	aggregateType string,
	factory Factory[T],
	store eventsourcing.EventStore,
	options ...Option,
) (*Repository[T], error) {

	if aggregateType == "" {
		return nil, ErrEmptyAggregateType
	}

	if factory == nil {
		return nil, ErrNilFactory
	}

	if store == nil {
		return nil, ErrNilEventStore
	}

	cfg := config{lockingStrategy: Optimistic}
	for _, option := range options {
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	lockManager := cfg.lockManager
	if lockManager == nil {
		var err error
		if lockManager, err = newLockManager(cfg.lockingStrategy); err != nil {
			return nil, err
		}
	}

	strategy := cfg.lockingStrategy
	if _, ok := lockManager.(*PessimisticLockManager); ok {
		strategy = Pessimistic
	}

	_, optimistic := lockManager.(*OptimisticLockManager)

	return &Repository[T]{
		aggregateType: aggregateType,
		factory:       factory,
		store:         store,
		eventBus:      cfg.eventBus,
		lockManager:   lockManager,
		strategy:      strategy,
		observer:      cfg.observer,
		trackOwners:   !optimistic,
	}, nil
}

// AggregateType returns the type id under which the aggregates are stored.
func (r *Repository[T]) AggregateType() string {
	return r.aggregateType
}

// LockManager returns the LockManager in use.
func (r *Repository[T]) LockManager() LockManager {
	return r.lockManager
}

// Load obtains the lock for the aggregate, reads its history and rebuilds it.
//
// With a cache (see CachingRepository) the cached instance is returned once the lock is held.
// Reads always use strong consistency. Returns an error matching eventsourcing.ErrAggregateNotFound
// if the aggregate has no events and eventsourcing.ErrDecodingEventFailed if a stored event cannot be decoded.
// On failure the lock is released again.
func (r *Repository[T]) Load(ctx context.Context, aggregateID uuid.UUID) (T, error) {
	var empty T

	ctx, span := r.observer.StartSpan(ctx, spanNameLoad, r.spanAttrs(aggregateID))
	start := time.Now()

	owner, ok := LockOwnerFromContext(ctx)
	if !ok {
		owner = NewLockOwner()
	}

	if err := r.lockManager.ObtainLock(ctx, aggregateID, owner); err != nil {
		r.failLoad(ctx, span, aggregateID, errorTypeLock, err, start)
		return empty, err
	}

	if cached, found := r.cached(aggregateID); found {
		r.track(cached, owner)
		r.observer.IncrementCounter(ctx, metricCacheHits, r.labels(operationLoad, eventsourcing.StatusSuccess))
		r.finishLoad(ctx, span, aggregateID, logMsgAggregateLoadedFromCache, start)

		return cached, nil
	}

	aggregate, errorType, err := r.readAndInitialize(ctx, aggregateID)
	if err != nil {
		r.releaseQuietly(ctx, aggregateID, owner)
		r.failLoad(ctx, span, aggregateID, errorType, err, start)

		return empty, err
	}

	r.track(aggregate, owner)
	r.finishLoad(ctx, span, aggregateID, logMsgAggregateLoaded, start)

	return aggregate, nil
}

func (r *Repository[T]) finishLoad(ctx context.Context, span eventsourcing.SpanContext, aggregateID uuid.UUID, msg string, start time.Time) {
	duration := time.Since(start)
	r.observer.Debug(ctx, msg,
		logAttrAggregateType, r.aggregateType,
		logAttrAggregateID, aggregateID.String(),
		logAttrDurationMS, eventsourcing.ToMilliseconds(duration))
	r.observer.RecordDuration(ctx, metricLoadDuration, duration, r.labels(operationLoad, eventsourcing.StatusSuccess))
	r.observer.FinishSpan(span, eventsourcing.StatusSuccess, nil)
}

func (r *Repository[T]) readAndInitialize(ctx context.Context, aggregateID uuid.UUID) (T, string, error) {
	var empty T

	stream, err := r.store.ReadEvents(eventsourcing.WithStrongConsistency(ctx), r.aggregateType, aggregateID)
	if err != nil {
		if errors.Is(err, eventsourcing.ErrAggregateNotFound) {
			return empty, errorTypeNotFound, err
		}

		return empty, errorTypeStorage, err
	}

	aggregate := r.factory(aggregateID)
	if err = aggregate.InitializeState(stream); err != nil {
		return empty, errorTypeInitialize, err
	}

	return aggregate, "", nil
}

// Save persists the uncommitted events of the aggregate and publishes them afterward.
//
// For an aggregate with persisted history, the lock is validated first; a failed validation returns
// an *eventsourcing.ConcurrencyError and nothing is appended. After a conflict the lock is released,
// the aggregate has to be loaded again. If appending fails for another reason, the lock validation is reverted
// and the uncommitted events and the lock are kept so the caller can retry or Discard.
// If publishing fails after a successful append, the events are committed anyway and the returned error
// matches ErrPublishingFailed.
func (r *Repository[T]) Save(ctx context.Context, aggregate T) error {
	aggregateID := aggregate.AggregateID()
	ctx, span := r.observer.StartSpan(ctx, spanNameSave, r.spanAttrs(aggregateID))
	start := time.Now()

	_, hasHistory := aggregate.LastCommittedSequenceNumber()
	owner := r.ownerOf(aggregate)

	if hasHistory && !r.lockManager.ValidateLock(aggregate, owner) {
		return r.failSaveWithConflict(ctx, span, aggregate, start)
	}

	eventCount := aggregate.UncommittedEventCount()
	committed, err := eventsourcing.ReadAll(aggregate.UncommittedEvents())
	if err != nil {
		return err
	}

	if eventCount > 0 {
		if err = r.store.AppendEvents(ctx, r.aggregateType, aggregate.UncommittedEvents()); err != nil {
			if hasHistory {
				r.revertLock(aggregate, owner)
			}

			r.evict(aggregateID)

			if errors.Is(err, eventsourcing.ErrConcurrencyConflict) {
				return r.failSaveWithConflict(ctx, span, aggregate, start)
			}

			r.observer.Error(ctx, logMsgAppendFailed, err, logAttrAggregateID, aggregateID.String())
			r.recordSaveFailure(ctx, span, errorTypeStorage, start)

			return err
		}
	}

	publishErr := r.publish(ctx, committed)

	aggregate.CommitEvents()

	if r.cache != nil {
		r.cache.Add(aggregateID, aggregate)
	}

	if hasHistory {
		r.owners.Delete(aggregate)
		r.releaseQuietly(ctx, aggregateID, owner)
	}

	if publishErr != nil {
		r.observer.Error(ctx, logMsgPublishFailed, publishErr, logAttrAggregateID, aggregateID.String())
		r.recordSaveFailure(ctx, span, errorTypePublish, start)

		return errors.Join(ErrPublishingFailed, publishErr)
	}

	duration := time.Since(start)
	r.observer.Debug(ctx, logMsgAggregateSaved,
		logAttrAggregateType, r.aggregateType,
		logAttrAggregateID, aggregateID.String(),
		logAttrEventCount, eventCount,
		logAttrDurationMS, eventsourcing.ToMilliseconds(duration))
	r.observer.RecordDuration(ctx, metricSaveDuration, duration, r.labels(operationSave, eventsourcing.StatusSuccess))
	r.observer.RecordValue(ctx, metricEventsSaved, float64(eventCount), r.labels(operationSave, eventsourcing.StatusSuccess))
	r.observer.FinishSpan(span, eventsourcing.StatusSuccess, map[string]string{logAttrEventCount: strconv.Itoa(eventCount)})

	return nil
}

// Discard gives up a loaded aggregate without saving it and releases its lock.
// A cached instance is evicted, since it may carry uncommitted changes.
// With the optimistic LockManager nothing is held, so Discard only evicts.
func (r *Repository[T]) Discard(aggregate T) error {
	r.evict(aggregate.AggregateID())

	if !r.trackOwners {
		return nil
	}

	owner, ok := r.owners.LoadAndDelete(aggregate)
	if !ok {
		return ErrUnknownAggregate
	}

	return r.lockManager.ReleaseLock(aggregate.AggregateID(), owner.(LockOwner))
}

func (r *Repository[T]) publish(ctx context.Context, events []eventsourcing.Event) error {
	if r.eventBus == nil || len(events) == 0 {
		return nil
	}

	return r.eventBus.Publish(ctx, events...)
}

func (r *Repository[T]) track(aggregate T, owner LockOwner) {
	if r.trackOwners {
		r.owners.Store(aggregate, owner)
	}
}

func (r *Repository[T]) cached(aggregateID uuid.UUID) (T, bool) {
	var empty T

	if r.cache == nil {
		return empty, false
	}

	cached, found := r.cache.Get(aggregateID)
	if !found {
		return empty, false
	}

	return cached.(T), true
}

func (r *Repository[T]) evict(aggregateID uuid.UUID) {
	if r.cache != nil {
		r.cache.Remove(aggregateID)
	}
}

func (r *Repository[T]) revertLock(aggregate T, owner LockOwner) {
	if reverter, ok := r.lockManager.(LockReverter); ok {
		reverter.RevertLock(aggregate, owner)
	}
}

func (r *Repository[T]) ownerOf(aggregate T) LockOwner {
	if owner, ok := r.owners.Load(aggregate); ok {
		return owner.(LockOwner)
	}

	return LockOwner{}
}

func (r *Repository[T]) releaseQuietly(ctx context.Context, aggregateID uuid.UUID, owner LockOwner) {
	if err := r.lockManager.ReleaseLock(aggregateID, owner); err != nil {
		r.observer.Warn(ctx, logMsgReleaseLockFailed, logAttrAggregateID, aggregateID.String(), eventsourcing.LogAttrError, err.Error())
	}
}

func (r *Repository[T]) failLoad(ctx context.Context, span eventsourcing.SpanContext, aggregateID uuid.UUID, errorType string, err error, start time.Time) {
	if errorType != errorTypeNotFound {
		r.observer.Error(ctx, logMsgLoadFailed, err, logAttrAggregateID, aggregateID.String())
	}

	labels := r.labels(operationLoad, eventsourcing.StatusError)
	labels[eventsourcing.LabelErrorType] = errorType
	r.observer.RecordDuration(ctx, metricLoadDuration, time.Since(start), labels)
	r.observer.FinishSpan(span, eventsourcing.StatusError, map[string]string{eventsourcing.LabelErrorType: errorType})
}

func (r *Repository[T]) failSaveWithConflict(ctx context.Context, span eventsourcing.SpanContext, aggregate T, start time.Time) error {
	aggregateID := aggregate.AggregateID()
	lastCommitted, _ := aggregate.LastCommittedSequenceNumber()
	conflict := &eventsourcing.ConcurrencyError{AggregateID: aggregateID, ExpectedVersion: lastCommitted}

	r.evict(aggregateID)
	if owner, ok := r.owners.LoadAndDelete(aggregate); ok {
		r.releaseQuietly(ctx, aggregateID, owner.(LockOwner))
	}

	r.observer.Info(ctx, logMsgConcurrencyConflict,
		logAttrAggregateID, aggregate.AggregateID().String(),
		logAttrLockingStrategy, r.strategy.String())
	r.observer.IncrementCounter(ctx, metricConcurrencyConflicts, r.labels(operationSave, eventsourcing.StatusConflict))
	r.observer.RecordDuration(ctx, metricSaveDuration, time.Since(start), r.labels(operationSave, eventsourcing.StatusConflict))
	r.observer.FinishSpan(span, eventsourcing.StatusConflict, nil)

	return conflict
}

func (r *Repository[T]) recordSaveFailure(ctx context.Context, span eventsourcing.SpanContext, errorType string, start time.Time) {
	labels := r.labels(operationSave, eventsourcing.StatusError)
	labels[eventsourcing.LabelErrorType] = errorType
	r.observer.RecordDuration(ctx, metricSaveDuration, time.Since(start), labels)
	r.observer.FinishSpan(span, eventsourcing.StatusError, map[string]string{eventsourcing.LabelErrorType: errorType})
}

func (r *Repository[T]) labels(operation, status string) map[string]string {
	return map[string]string{
		eventsourcing.LabelOperation: operation,
		eventsourcing.LabelStatus:    status,
		logAttrAggregateType:         r.aggregateType,
	}
}

func (r *Repository[T]) spanAttrs(aggregateID uuid.UUID) map[string]string {
	return map[string]string{
		logAttrAggregateType: r.aggregateType,
		logAttrAggregateID:   aggregateID.String(),
	}
}
