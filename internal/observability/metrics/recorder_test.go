package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecorder is a test implementation of the Recorder interface.
type TestRecorder struct {
	mu         sync.RWMutex
	operations map[string]map[string]int // operation -> status -> count
	counts     map[string]map[string]int // operation -> action -> count
}

func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		operations: make(map[string]map[string]int),
		counts:     make(map[string]map[string]int),
	}
}

func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operations[operation] == nil {
		r.operations[operation] = make(map[string]int)
	}
	r.operations[operation][status]++
}

func (r *TestRecorder) RecordDuration(string, float64) {}

func (r *TestRecorder) RecordError(string, string) {}

func (r *TestRecorder) AddCount(operation, action string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[operation] == nil {
		r.counts[operation] = make(map[string]int)
	}
	r.counts[operation][action] += n
}

func TestRecorderInterfaceCompliance(t *testing.T) {
	var _ Recorder = (*AnnotationMetrics)(nil)
	var _ Recorder = NopRecorder{}
	var _ Recorder = (*TestRecorder)(nil)

	assert.Equal(t, NopRecorder{}, OrNop(nil))
	rec := NewTestRecorder()
	assert.Same(t, rec, OrNop(rec))
}

func TestAnnotationMetricsCounts(t *testing.T) {
	m, err := NewAnnotationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordOperation(OpImport, StatusSuccess)
	m.RecordOperation(OpImport, StatusSuccess)
	m.RecordError(OpImport, "validation")
	m.AddCount(OpImport, ActionImported, 12)
	m.AddCount(OpImport, ActionImported, 0)
	m.RecordDuration(OpImport, 0.05)

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpImport, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationErrors.WithLabelValues(OpImport, "validation")), 0)
	assert.InDelta(t, 12, testutil.ToFloat64(m.entityChanges.WithLabelValues(OpImport, ActionImported)), 0)
}

func TestHTTPMetricsRecordRequest(t *testing.T) {
	m, err := NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordHTTPRequest("GET", "/api/v1/campaigns", 200, 10*time.Millisecond, 512)
	m.RecordAuthOperation("login", StatusError)

	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/campaigns", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.authOperationsTotal.WithLabelValues("login", StatusError)), 0)
}

func TestMQTTMetricsNilSafe(t *testing.T) {
	var m *MQTTMetrics
	assert.NotPanics(t, func() {
		m.UpdateConnectionStatus(true)
		m.IncrementErrors()
		m.StartPublishTimer().ObserveDuration()
	})
}
