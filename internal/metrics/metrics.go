// Package metrics exposes Prometheus collectors for generation cycles,
// lease completion and check ingestion.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeNoWorkers  = "no_workers"
	OutcomeNoTasks    = "no_tasks"
	OutcomeInProgress = "in_progress"
	OutcomeError      = "error"
)

// Recorder groups the service's collectors. A nil *Recorder discards
// everything, so components can run without metrics.
type Recorder struct {
	cyclesTotal        *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	assignmentsCreated prometheus.Counter
	leasesPurged       prometheus.Counter
	checksIngested     *prometheus.CounterVec
	completions        *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_generation_cycles_total",
			Help: "Assignment generation cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_generation_cycle_duration_seconds",
			Help:    "Duration of assignment generation cycles",
			Buckets: prometheus.DefBuckets,
		}),
		assignmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_assignments_created_total",
			Help: "Leases created by generation cycles",
		}),
		leasesPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_leases_purged_total",
			Help: "Expired unfulfilled leases removed at cycle start",
		}),
		checksIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_checks_ingested_total",
			Help: "Check results persisted, by reported status",
		}, []string{"status"}),
		completions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_lease_completions_total",
			Help: "Completion attempts by result (completed, miss, error)",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_http_requests_total",
			Help: "HTTP requests handled, by method and status code",
		}, []string{"method", "code"}),
		httpDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// CycleCompleted records the outcome and duration of one generation cycle
func (r *Recorder) CycleCompleted(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.cyclesTotal.WithLabelValues(outcome).Inc()
	r.cycleDuration.Observe(d.Seconds())
}

// AssignmentsCreated adds n newly persisted leases
func (r *Recorder) AssignmentsCreated(n int) {
	if r == nil {
		return
	}
	r.assignmentsCreated.Add(float64(n))
}

// LeasesPurged adds n purged leases
func (r *Recorder) LeasesPurged(n int64) {
	if r == nil {
		return
	}
	r.leasesPurged.Add(float64(n))
}

// CheckIngested counts a persisted check result
func (r *Recorder) CheckIngested(status string) {
	if r == nil {
		return
	}
	r.checksIngested.WithLabelValues(status).Inc()
}

// CompletionRecorded counts one completion attempt
func (r *Recorder) CompletionRecorded(completed bool, err error) {
	if r == nil {
		return
	}
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case completed:
		result = "completed"
	}
	r.completions.WithLabelValues(result).Inc()
}

// HTTPRequest records a served request
func (r *Recorder) HTTPRequest(method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.httpDuration.Observe(d.Seconds())
}
