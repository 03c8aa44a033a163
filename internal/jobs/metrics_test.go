package jobmetrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, m *Metrics, err error) error {
	t.Helper()
	handler := m.Instrument(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return err
	}))
	return handler.ProcessTask(t.Context(), asynq.NewTask("sessions:prune", nil))
}

func TestInstrumentRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	require.NoError(t, run(t, m, nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, run(t, m, boom), boom)
	assert.ErrorIs(t, run(t, m, asynq.SkipRetry), asynq.SkipRetry)
	m.AddPrunedSessions(3)
	m.AddPrunedSessions(0)

	expected := `
# HELP odyssey_jobs_failures_total Maintenance task runs that returned an error.
# TYPE odyssey_jobs_failures_total counter
odyssey_jobs_failures_total{job="sessions:prune"} 1
# HELP odyssey_jobs_total Maintenance task runs by task type and status.
# TYPE odyssey_jobs_total counter
odyssey_jobs_total{job="sessions:prune",status="failure"} 1
odyssey_jobs_total{job="sessions:prune",status="skipped"} 1
odyssey_jobs_total{job="sessions:prune",status="success"} 1
# HELP odyssey_sessions_pruned_total Expired login sessions removed by the prune job.
# TYPE odyssey_sessions_pruned_total counter
odyssey_sessions_pruned_total 3
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"odyssey_jobs_total", "odyssey_jobs_failures_total", "odyssey_sessions_pruned_total"))
	assert.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("sessions:prune")))
}

func TestNilMetricsPassesThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, run(t, m, boom), boom)
	m.AddPrunedSessions(2)
}
