package desim

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible instrumentation for a running
// simulation, namespaced "desim_".
//
// Metrics exposed:
//
//  1. scheduled_events (gauge): events currently Scheduled, awaiting
//     dispatch. No labels.
//  2. store_occupancy (gauge): current |buffer| for a store. Labels:
//     run_id, store_id.
//  3. store_wait_seconds (histogram): time a Get/Put waiter spent parked
//     before a rendezvous resolved it. Labels: run_id, store_id, op.
//  4. step_latency_seconds (histogram): wall-clock time spent inside one
//     Dispatch call (handler execution, not simulated time). Labels: run_id,
//     process_type.
//  5. checkpoint_dumps_total (counter): number of dump files written.
//     Labels: run_id.
//
// Thread-safe: suitable for use from a single runner goroutine, which is the
// only place the kernel ever mutates simulation state.
type Metrics struct {
	scheduledEvents prometheus.Gauge
	storeOccupancy  *prometheus.GaugeVec
	storeWait       *prometheus.HistogramVec
	stepLatency     *prometheus.HistogramVec
	checkpointDumps *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics creates and registers all simulation metrics with registry. Pass
// nil to use prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		scheduledEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "desim",
			Name:      "scheduled_events",
			Help:      "Events currently Scheduled, awaiting dispatch",
		}),
		storeOccupancy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "desim",
			Name:      "store_occupancy",
			Help:      "Current buffer length of a store",
		}, []string{"run_id", "store_id"}),
		storeWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "desim",
			Name:      "store_wait_seconds",
			Help:      "Logical time a get/put waiter spent parked before rendezvous",
			Buckets:   prometheus.DefBuckets,
		}, []string{"run_id", "store_id", "op"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "desim",
			Name:      "step_latency_seconds",
			Help:      "Wall-clock time spent dispatching one event",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"run_id", "process_type"}),
		checkpointDumps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desim",
			Name:      "checkpoint_dumps_total",
			Help:      "Number of checkpoint dump files written",
		}, []string{"run_id"}),
	}
}

func (m *Metrics) SetScheduledEvents(n int) {
	if !m.isEnabled() {
		return
	}
	m.scheduledEvents.Set(float64(n))
}

func (m *Metrics) SetStoreOccupancy(runID string, storeID StoreID, n int) {
	if !m.isEnabled() {
		return
	}
	m.storeOccupancy.WithLabelValues(runID, string(storeID)).Set(float64(n))
}

func (m *Metrics) ObserveStoreWait(runID string, storeID StoreID, op string, waitSeconds float64) {
	if !m.isEnabled() {
		return
	}
	m.storeWait.WithLabelValues(runID, string(storeID), op).Observe(waitSeconds)
}

func (m *Metrics) ObserveStepLatency(runID string, processType ProcessType, seconds float64) {
	if !m.isEnabled() {
		return
	}
	m.stepLatency.WithLabelValues(runID, string(processType)).Observe(seconds)
}

func (m *Metrics) IncCheckpointDumps(runID string) {
	if !m.isEnabled() {
		return
	}
	m.checkpointDumps.WithLabelValues(runID).Inc()
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable stops metric recording (useful for tests sharing a registry).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable resumes metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
