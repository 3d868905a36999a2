package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron job results.
const (
	CronResultSuccess = "success"
	CronResultFailure = "failure"
)

// CronJobMetrics tracks cron worker cycles and the jobs inside them.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lockSkipped prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookings_cron_job_runs_total",
			Help: "Cron job executions by result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookings_cron_job_duration_seconds",
			Help:    "Cron job wall time.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		lockSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookings_cron_cycles_lock_skipped_total",
			Help: "Cycles skipped because another instance held the cron lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.lockSkipped)
	return m
}

// ObserveRun records one job execution.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	result := CronResultSuccess
	if err != nil {
		result = CronResultFailure
	}
	c.runs.WithLabelValues(job, result).Inc()
	c.duration.WithLabelValues(job).Observe(took.Seconds())
}

func (c *CronJobMetrics) IncLockSkipped() {
	if c == nil || c.lockSkipped == nil {
		return
	}
	c.lockSkipped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
