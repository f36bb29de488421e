package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks scheduled job executions per job name.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paygate",
			Name:      "cron_job_duration_seconds",
			Help:      "Scheduled job execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		success: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "cron_job_success_total",
			Help:      "Scheduled job completions.",
		}, []string{"job"}),
		failure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "cron_job_failure_total",
			Help:      "Scheduled job failures.",
		}, []string{"job"}),
	}
	if reg != nil {
		reg.MustRegister(m.duration, m.success, m.failure)
	}
	return m
}

func (m *CronJobMetrics) ObserveDuration(job string, elapsed time.Duration) {
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *CronJobMetrics) IncSuccess(job string) {
	m.success.WithLabelValues(job).Inc()
}

func (m *CronJobMetrics) IncFailure(job string) {
	m.failure.WithLabelValues(job).Inc()
}
