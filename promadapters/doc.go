// Package promadapters provides a Prometheus implementation of eventsourcing.MetricsCollector.
//
// Prometheus needs a fixed label set per metric, while components add labels like error_type only
// on failures. The collector therefore creates every metric with one configured label schema,
// fills labels a call does not carry with an empty value and drops labels outside the schema.
package promadapters
