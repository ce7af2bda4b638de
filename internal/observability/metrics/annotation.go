package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AnnotationMetrics contains the metrics of the range, task, report and
// import engines.
type AnnotationMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	entityChanges     *prometheus.CounterVec
}

// NewAnnotationMetrics creates and registers the annotation engine metrics.
func NewAnnotationMetrics(registry *prometheus.Registry) (*AnnotationMetrics, error) {
	m := &AnnotationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AnnotationMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of annotation engine operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time taken by annotation engine operations",
			Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~2s
		},
		[]string{"operation"},
	)

	m.operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operation_errors_total",
			Help:      "Total number of annotation engine errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.entityChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entity_changes_total",
			Help:      "Ranges, tasks and results changed by annotation engine operations",
		},
		[]string{"operation", "action"},
	)
}

// RecordOperation implements Recorder.
func (m *AnnotationMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *AnnotationMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *AnnotationMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}

// AddCount implements Recorder.
func (m *AnnotationMetrics) AddCount(operation, action string, n int) {
	if n <= 0 {
		return
	}
	m.entityChanges.WithLabelValues(operation, action).Add(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *AnnotationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.operationErrors.Describe(ch)
	m.entityChanges.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AnnotationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.operationErrors.Collect(ch)
	m.entityChanges.Collect(ch)
}
