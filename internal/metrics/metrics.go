// Package metrics exposes Prometheus instrumentation for the
// coordination core, namespaced "fleet_" so the (external) transport
// shell can serve it alongside its own HTTP metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every gauge/histogram/counter the coordination core
// updates. A nil *Metrics is valid and a no-op (see the guard in every
// method), so components can hold an optional *Metrics without a
// separate "enabled" check at each call site.
type Metrics struct {
	activePilots     prometheus.Gauge
	schedulerQueue   prometheus.Gauge
	dispatchLatency  *prometheus.HistogramVec
	retriesTotal     *prometheus.CounterVec
	reservationWait  *prometheus.HistogramVec
	lockConflicts    *prometheus.CounterVec
	checkpointsTotal *prometheus.CounterVec
	missionsActive   prometheus.Gauge
	patternMatches   *prometheus.CounterVec
}

// New registers every metric against registry. A nil registry uses
// prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)

	return &Metrics{
		activePilots: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleet", Name: "active_pilots",
			Help: "Pilots currently registered with status idle or busy.",
		}),
		schedulerQueue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleet", Name: "scheduler_queue_depth",
			Help: "Work orders currently pending dispatch.",
		}),
		dispatchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fleet", Name: "dispatch_latency_ms",
			Help:    "Time from work order submission to assignment, in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
		}, []string{"priority"}),
		retriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet", Name: "work_order_retries_total",
			Help: "Cumulative work order retry attempts.",
		}, []string{"work_type", "reason"}),
		reservationWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fleet", Name: "reservation_wait_ms",
			Help:    "Time spent waiting in the FIFO queue before a reservation/lock is granted.",
			Buckets: []float64{1, 10, 100, 1000, 10000, 60000, 300000},
		}, []string{"kind"}), // kind: reservation, lock
		lockConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet", Name: "lock_conflicts_total",
			Help: "Acquisition attempts that failed due to an active holder.",
		}, []string{"kind"}),
		checkpointsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet", Name: "checkpoints_total",
			Help: "Checkpoints created, labeled by trigger.",
		}, []string{"trigger"}),
		missionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleet", Name: "missions_active",
			Help: "Missions currently in_progress.",
		}),
		patternMatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet", Name: "pattern_matches_total",
			Help: "Learned-pattern match attempts, labeled by whether a match was found.",
		}, []string{"matched"}),
	}
}

func (m *Metrics) SetActivePilots(n int) {
	if m == nil {
		return
	}
	m.activePilots.Set(float64(n))
}

func (m *Metrics) SetSchedulerQueueDepth(n int) {
	if m == nil {
		return
	}
	m.schedulerQueue.Set(float64(n))
}

func (m *Metrics) ObserveDispatchLatency(priority string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.WithLabelValues(priority).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncRetries(workType, reason string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(workType, reason).Inc()
}

func (m *Metrics) ObserveReservationWait(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.reservationWait.WithLabelValues(kind).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncLockConflict(kind string) {
	if m == nil {
		return
	}
	m.lockConflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCheckpoint(trigger string) {
	if m == nil {
		return
	}
	m.checkpointsTotal.WithLabelValues(trigger).Inc()
}

func (m *Metrics) SetMissionsActive(n int) {
	if m == nil {
		return
	}
	m.missionsActive.Set(float64(n))
}

func (m *Metrics) IncPatternMatch(matched bool) {
	if m == nil {
		return
	}
	label := "false"
	if matched {
		label = "true"
	}
	m.patternMatches.WithLabelValues(label).Inc()
}
