package eventsourcing

import (
	"context"
	"math"
	"time"
)

const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusConflict = "conflict"
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LogAttrError   = "error"
)

// Observer bundles the optional logger, contextual logger, metrics collector and tracing collector of a component.
// Every method is a no-op for the parts that are not configured, so components call them unconditionally.
type Observer struct {
	Logger           Logger
	ContextualLogger ContextualLogger
	Metrics          MetricsCollector
	Tracing          TracingCollector
}

// Debug logs at debug level, preferring the contextual logger.
func (o *Observer) Debug(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if o.Logger != nil {
		o.Logger.Debug(msg, args...)
	}
}

// Info logs at info level, preferring the contextual logger.
func (o *Observer) Info(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if o.Logger != nil {
		o.Logger.Info(msg, args...)
	}
}

// Warn logs at warn level, preferring the contextual logger.
func (o *Observer) Warn(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if o.Logger != nil {
		o.Logger.Warn(msg, args...)
	}
}

// Error logs the error at error level, preferring the contextual logger.
func (o *Observer) Error(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{LogAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if o.ContextualLogger != nil {
		o.ContextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if o.Logger != nil {
		o.Logger.Error(msg, allArgs...)
	}
}

// RecordDuration records a duration metric, using the context-aware method if the collector supports it.
func (o *Observer) RecordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	o.Metrics.RecordDuration(metric, duration, labels)
}

// IncrementCounter increments a counter metric, using the context-aware method if the collector supports it.
func (o *Observer) IncrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.Metrics.IncrementCounter(metric, labels)
}

// RecordValue records a gauge value, using the context-aware method if the collector supports it.
func (o *Observer) RecordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	o.Metrics.RecordValue(metric, value, labels)
}

// StartSpan starts a tracing span if the tracing collector is configured.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if o.Tracing == nil {
		return ctx, nil
	}

	return o.Tracing.StartSpan(ctx, name, attrs)
}

// FinishSpan finishes a span started with StartSpan.
func (o *Observer) FinishSpan(span SpanContext, status string, attrs map[string]string) {
	if o.Tracing == nil || span == nil {
		return
	}

	o.Tracing.FinishSpan(span, status, attrs)
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func ToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
