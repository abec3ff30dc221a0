package eventstore

import (
	"context"
	"strconv"
	"time"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

const (
	logMsgEventsAppended       = "events appended"
	logMsgEventsRead           = "events read"
	logMsgConcurrencyConflict  = "concurrency conflict detected"
	logMsgOperationFailed      = "event store operation failed"
	logAttrEngine              = "engine"
	logAttrOperation           = "operation"
	logAttrAggregateType       = "aggregate_type"
	logAttrAggregateID         = "aggregate_id"
	logAttrEventCount          = "event_count"
	logAttrDurationMS          = "duration_ms"
	OperationAppend            = "append"
	OperationRead              = "read"
	spanNamePrefix             = "eventstore."
	metricAppendDuration       = "eventstore_append_duration_seconds"
	metricReadDuration         = "eventstore_read_duration_seconds"
	metricEventsAppended       = "eventstore_events_appended_total"
	metricEventsRead           = "eventstore_events_read_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	metricStorageErrors        = "eventstore_storage_errors_total"
	ErrorTypeNotFound          = "not_found"
	ErrorTypeEncode            = "encode"
	ErrorTypeStorage           = "storage"
	ErrorTypeInvalidInput      = "invalid_input"
)

// Operation measures one engine call from Begin to one of its finishing methods.
type Operation struct {
	ctx           context.Context
	observer      *eventsourcing.Observer
	engine        string
	name          string
	aggregateType string
	aggregateID   string
	span          eventsourcing.SpanContext
	start         time.Time
}

// Begin starts measuring an operation of the engine and returns the context to pass on to the storage.
func (s *Settings) Begin(ctx context.Context, engine, operation, aggregateType, aggregateID string) (context.Context, *Operation) {
	ctx, span := s.Observer.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
		logAttrEngine:        engine,
		logAttrAggregateType: aggregateType,
		logAttrAggregateID:   aggregateID,
	})

	return ctx, &Operation{
		ctx:           ctx,
		observer:      &s.Observer,
		engine:        engine,
		name:          operation,
		aggregateType: aggregateType,
		aggregateID:   aggregateID,
		span:          span,
		start:         time.Now(),
	}
}

// Succeed records a successful operation that appended or read eventCount events.
func (o *Operation) Succeed(eventCount int) {
	duration := time.Since(o.start)
	labels := o.labels(eventsourcing.StatusSuccess)

	msg := logMsgEventsRead
	durationMetric, countMetric := metricReadDuration, metricEventsRead
	if o.name == OperationAppend {
		msg = logMsgEventsAppended
		durationMetric, countMetric = metricAppendDuration, metricEventsAppended
	}

	o.observer.Debug(o.ctx, msg,
		logAttrEngine, o.engine,
		logAttrAggregateType, o.aggregateType,
		logAttrAggregateID, o.aggregateID,
		logAttrEventCount, eventCount,
		logAttrDurationMS, eventsourcing.ToMilliseconds(duration))
	o.observer.RecordDuration(o.ctx, durationMetric, duration, labels)
	o.observer.RecordValue(o.ctx, countMetric, float64(eventCount), labels)
	o.observer.FinishSpan(o.span, eventsourcing.StatusSuccess, map[string]string{logAttrEventCount: strconv.Itoa(eventCount)})
}

// Conflict records an append that lost against a concurrent writer.
func (o *Operation) Conflict(err error) {
	o.observer.Info(o.ctx, logMsgConcurrencyConflict,
		logAttrEngine, o.engine,
		logAttrAggregateID, o.aggregateID,
		eventsourcing.LogAttrError, err.Error())
	o.observer.IncrementCounter(o.ctx, metricConcurrencyConflicts, o.labels(eventsourcing.StatusConflict))
	o.observer.RecordDuration(o.ctx, metricAppendDuration, time.Since(o.start), o.labels(eventsourcing.StatusConflict))
	o.observer.FinishSpan(o.span, eventsourcing.StatusConflict, nil)
}

// Fail records a failed operation. A missing aggregate is not logged as an error.
func (o *Operation) Fail(errorType string, err error) {
	labels := o.labels(eventsourcing.StatusError)
	labels[eventsourcing.LabelErrorType] = errorType

	if errorType != ErrorTypeNotFound {
		o.observer.Error(o.ctx, logMsgOperationFailed, err,
			logAttrEngine, o.engine,
			logAttrOperation, o.name,
			logAttrAggregateID, o.aggregateID)
		o.observer.IncrementCounter(o.ctx, metricStorageErrors, labels)
	}

	durationMetric := metricReadDuration
	if o.name == OperationAppend {
		durationMetric = metricAppendDuration
	}

	o.observer.RecordDuration(o.ctx, durationMetric, time.Since(o.start), labels)
	o.observer.FinishSpan(o.span, eventsourcing.StatusError, map[string]string{eventsourcing.LabelErrorType: errorType})
}

func (o *Operation) labels(status string) map[string]string {
	return map[string]string{
		eventsourcing.LabelOperation: o.name,
		eventsourcing.LabelStatus:    status,
		logAttrEngine:                o.engine,
	}
}
