// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes used as the status label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeSkipped marks tasks dropped with asynq.SkipRetry, such as
	// malformed payloads.
	OutcomeSkipped = "skipped"
)

// Metrics holds the job collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	reconciled  prometheus.Counter
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors with registerer. A nil registerer
// returns the process-wide instance on prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	sharedOnce.Do(func() {
		shared = register(prometheus.DefaultRegisterer)
	})
	return shared
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrohub_jobs_total",
			Help: "Job runs by task type and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrohub_jobs_failures_total",
			Help: "Failed job runs by task type.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrohub_job_duration_seconds",
			Help:    "Job run duration by task type.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agrohub_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by task type.",
		}, []string{"job"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agrohub_hr_tasks_reconciled_total",
			Help: "HR tasks inserted by the reconcile job for paid incidents missing one.",
		}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.reconciled)
	return m
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job. It is safe on a nil receiver.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of err and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	outcome := Outcome(err)
	m.runs.WithLabelValues(t.job, outcome).Inc()
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	switch outcome {
	case OutcomeSuccess:
		m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	case OutcomeFailure:
		m.failures.WithLabelValues(t.job).Inc()
	}
	return err
}

// Outcome classifies a handler result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeSkipped
	default:
		return OutcomeFailure
	}
}

// AddReconciled counts HR tasks backfilled by the reconcile job.
func (m *Metrics) AddReconciled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciled.Add(float64(n))
}
