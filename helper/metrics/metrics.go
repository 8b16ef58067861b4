package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe: every method is a no-op on a nil receiver so callers
// that do not care about metrics can pass nil.
type Metrics struct {
	updateRuns      *prometheus.CounterVec
	requestFailures *prometheus.CounterVec
	jobsCancelled   *prometheus.CounterVec
	jobsScheduled   prometheus.Counter
	pullRequests    *prometheus.GaugeVec
	updateDuration  prometheus.Histogram
}

func InitPrometheusMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		updateRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_runs_total",
				Help:      "Executions of the refresh job by outcome",
			},
			[]string{"outcome"},
		),
		requestFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_failures_total",
				Help:      "Failed Bitbucket requests reported to the client listener",
			},
			[]string{"kind"},
		),
		jobsCancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_cancelled_total",
				Help:      "Refresh jobs cancelled by reason",
			},
			[]string{"reason"},
		),
		jobsScheduled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_scheduled_total",
				Help:      "Refresh jobs installed as current",
			},
		),
		pullRequests: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pull_requests",
				Help:      "Pull requests currently shown in the panel",
			},
			[]string{"list"},
		),
		updateDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_duration_seconds",
				Help:      "Duration of one refresh run",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
	}

	reg.MustRegister(m.updateRuns, m.requestFailures, m.jobsCancelled, m.jobsScheduled, m.pullRequests, m.updateDuration)
	return m
}

func (m *Metrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.updateRuns.WithLabelValues(outcome).Inc()
	m.updateDuration.Observe(seconds)
}

func (m *Metrics) RequestFailed(kind string) {
	if m == nil {
		return
	}
	m.requestFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) JobCancelled(reason string) {
	if m == nil {
		return
	}
	m.jobsCancelled.WithLabelValues(reason).Inc()
}

func (m *Metrics) JobScheduled() {
	if m == nil {
		return
	}
	m.jobsScheduled.Inc()
}

func (m *Metrics) SetPullRequests(list string, count int) {
	if m == nil {
		return
	}
	m.pullRequests.WithLabelValues(list).Set(float64(count))
}
