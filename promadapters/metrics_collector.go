package promadapters

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

const counterSuffix = "_total"

var ErrNilRegisterer = errors.New("prometheus registerer must not be nil")
var ErrEmptyLabelNames = errors.New("label names must not be empty")

// DefaultLabelNames covers the labels set by the repositories, event buses, transactional listeners and engines.
var DefaultLabelNames = []string{
	eventsourcing.LabelOperation,
	eventsourcing.LabelStatus,
	eventsourcing.LabelErrorType,
	"aggregate_type",
	"engine",
	"listener",
	"yield",
}

// MetricsCollector implements eventsourcing.MetricsCollector with Prometheus vectors registered on demand:
//   - RecordDuration -> HistogramVec in seconds
//   - IncrementCounter -> CounterVec
//   - RecordValue -> CounterVec for names ending in _total, GaugeVec otherwise
//
// It is safe for concurrent use.
type MetricsCollector struct {
	registerer prometheus.Registerer
	namespace  string
	labelNames []string
	buckets    []float64
	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// Option configures a MetricsCollector.
type Option func(*MetricsCollector) error

// WithNamespace prefixes all metric names with namespace_.
func WithNamespace(namespace string) Option {
	return func(m *MetricsCollector) error {
		m.namespace = namespace
		return nil
	}
}

// WithLabelNames replaces DefaultLabelNames.
func WithLabelNames(labelNames ...string) Option {
	return func(m *MetricsCollector) error {
		if len(labelNames) == 0 {
			return ErrEmptyLabelNames
		}

		m.labelNames = labelNames

		return nil
	}
}

// WithBuckets sets the histogram buckets in seconds, prometheus.DefBuckets by default.
func WithBuckets(buckets ...float64) Option {
	return func(m *MetricsCollector) error {
		m.buckets = buckets
		return nil
	}
}

// NewMetricsCollector creates a collector registering its metrics on registerer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) (*MetricsCollector, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	m := &MetricsCollector{
		registerer: registerer,
		labelNames: DefaultLabelNames,
		buckets:    prometheus.DefBuckets,
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	for _, option := range options {
		if err := option(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordDuration observes the duration in seconds on the histogram of the metric.
func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	histogram := getOrRegister(m, m.histograms, metric, func() *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      metric,
			Help:      helpOf(metric),
			Buckets:   m.buckets,
		}, m.labelNames)
	})

	histogram.With(m.labelValues(labels)).Observe(duration.Seconds())
}

// IncrementCounter adds one to the counter of the metric.
func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	m.counter(metric).With(m.labelValues(labels)).Inc()
}

// RecordValue sets the gauge of the metric.
func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	if strings.HasSuffix(metric, counterSuffix) {
		if value > 0 {
			m.counter(metric).With(m.labelValues(labels)).Add(value)
		}

		return
	}

	gauge := getOrRegister(m, m.gauges, metric, func() *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      metric,
			Help:      helpOf(metric),
		}, m.labelNames)
	})

	gauge.With(m.labelValues(labels)).Set(value)
}

func (m *MetricsCollector) counter(metric string) *prometheus.CounterVec {
	return getOrRegister(m, m.counters, metric, func() *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      metric,
			Help:      helpOf(metric),
		}, m.labelNames)
	})
}

// getOrRegister returns the cached vector or registers a new one.
// If the registerer already holds an equal vector, that one is used.
func getOrRegister[V prometheus.Collector](m *MetricsCollector, vectors map[string]V, metric string, create func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vector, exists := vectors[metric]; exists {
		return vector
	}

	vector := create()
	if err := m.registerer.Register(vector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			if existing, ok := alreadyRegistered.ExistingCollector.(V); ok {
				vector = existing
			}
		}
	}

	vectors[metric] = vector

	return vector
}

func (m *MetricsCollector) labelValues(labels map[string]string) prometheus.Labels {
	values := make(prometheus.Labels, len(m.labelNames))
	for _, name := range m.labelNames {
		values[name] = labels[name]
	}

	return values
}

func helpOf(metric string) string {
	return strings.ReplaceAll(metric, "_", " ")
}

var _ eventsourcing.MetricsCollector = (*MetricsCollector)(nil)
