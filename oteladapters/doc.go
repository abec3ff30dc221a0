// Package oteladapters provides OpenTelemetry implementations of the eventsourcing observability interfaces.
//
// The adapters plug into every component that accepts a logger, a metrics collector or a tracing collector:
// event store engines, repositories, event buses and transactional listeners.
//
//	logger := oteladapters.NewSlogBridgeLogger("library")
//	metrics := oteladapters.NewMetricsCollector(otel.Meter("library"))
//	tracing := oteladapters.NewTracingCollector(otel.Tracer("library"))
//
//	bus, _ := eventhandling.NewAsyncEventBus(
//		eventhandling.WithContextualLogger(logger),
//		eventhandling.WithMetrics(metrics),
//		eventhandling.WithTracing(tracing),
//	)
package oteladapters
