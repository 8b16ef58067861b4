package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitPrometheusMetrics("pr_panel", reg)

	m.ObserveRun("ok", 0.2)
	m.ObserveRun("ok", 0.3)
	m.ObserveRun("transport", 1)
	m.RequestFailed("generic")
	m.JobCancelled("unauthorized")
	m.JobScheduled()
	m.SetPullRequests("own", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.updateRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updateRuns.WithLabelValues("transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestFailures.WithLabelValues("generic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsCancelled.WithLabelValues("unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsScheduled))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pullRequests.WithLabelValues("own")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.updateDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("ok", 1)
		m.RequestFailed("generic")
		m.JobCancelled("replaced")
		m.JobScheduled()
		m.SetPullRequests("own", 1)
	})
}
