// Package jobmetrics holds the Prometheus collectors shared by the worker
// and the tasks it runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records job outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	taskErrors  *prometheus.CounterVec
	purged      *prometheus.CounterVec
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	return register(prometheus.DefaultRegisterer)
})

// NewMetrics registers the collectors with reg, or once with the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return defaultMetrics()
	}
	return register(reg)
}

// Observe runs fn as one execution of job and records its outcome. The
// error from fn is returned unchanged.
func (m *Metrics) Observe(job string, fn func() error) error {
	start := time.Now()
	err := fn()
	if m == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
	m.runs.WithLabelValues(job, status).Inc()
	m.duration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	return err
}

// TaskError counts a task failure reported by the queue. final is true when
// no retry remains.
func (m *Metrics) TaskError(taskType string, final bool) {
	if m == nil {
		return
	}
	kind := "retry"
	if final {
		kind = "final"
	}
	m.taskErrors.WithLabelValues(taskType, kind).Inc()
}

// AddPurged counts rows removed by a housekeeping pass, per table.
func (m *Metrics) AddPurged(table string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.purged.WithLabelValues(table).Add(float64(rows))
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leavedesk_jobs_total",
			Help: "Job executions by job and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leavedesk_job_duration_seconds",
			Help:    "Job execution time.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 30},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leavedesk_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"job"}),
		taskErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leavedesk_task_errors_total",
			Help: "Queue task failures by task type and whether a retry remains.",
		}, []string{"task", "kind"}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leavedesk_housekeeping_purged_total",
			Help: "Rows removed by housekeeping, by table.",
		}, []string{"table"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.taskErrors, m.purged)
	return m
}
