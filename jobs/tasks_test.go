package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-rbac/internal/jobs"
)

type stubPruner struct {
	removed int64
	err     error
	calls   int
}

func (s *stubPruner) PruneSessions(ctx context.Context) (int64, error) {
	s.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected deadline")
	}
	return s.removed, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionsPruneTaskPayload(t *testing.T) {
	task, err := NewSessionsPruneTask("cron")
	require.NoError(t, err)
	assert.Equal(t, TaskSessionsPrune, task.Type())

	var payload SessionsPrunePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "cron", payload.Source)
}

func TestSessionsPruneJobSuccess(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	pruner := &stubPruner{removed: 4}
	job := NewSessionsPruneJob(pruner, quietLogger(), metrics)

	task, err := NewSessionsPruneTask("cli")
	require.NoError(t, err)
	require.NoError(t, job.Handle(t.Context(), task))
	assert.Equal(t, 1, pruner.calls)

	count, err := testutil.GatherAndCount(registry, "odyssey_sessions_pruned_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessionsPruneJobFailure(t *testing.T) {
	boom := errors.New("db down")
	job := NewSessionsPruneJob(&stubPruner{err: boom}, quietLogger(), nil)
	task, err := NewSessionsPruneTask("cron")
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(t.Context(), task), boom)
}

func TestSessionsPruneJobRejectsBadPayload(t *testing.T) {
	pruner := &stubPruner{}
	job := NewSessionsPruneJob(pruner, quietLogger(), nil)
	err := job.Handle(t.Context(), asynq.NewTask(TaskSessionsPrune, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, pruner.calls)
}

func TestSessionsPruneJobNotConfigured(t *testing.T) {
	var job *SessionsPruneJob
	assert.Error(t, job.Handle(t.Context(), asynq.NewTask(TaskSessionsPrune, nil)))
}

func TestQueueHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, quietLogger())
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, QueueMaintenance, body.Queue)
	assert.Zero(t, body.Pending)
}

type stubQueue struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubQueue) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestQueueHealthReportsCounts(t *testing.T) {
	h := &Handler{source: stubQueue{info: &asynq.QueueInfo{Queue: QueueMaintenance, Pending: 2, Retry: 1, Failed: 3}}, logger: quietLogger()}
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Pending)
	assert.Equal(t, 1, body.Retry)
	assert.Equal(t, 3, body.Failed)
}

func TestQueueHealthUnknownQueueIsEmpty(t *testing.T) {
	out, err := snapshot(stubQueue{err: asynq.ErrQueueNotFound})
	require.NoError(t, err)
	assert.Equal(t, QueueSnapshot{Queue: QueueMaintenance}, out)
}

func TestQueueHealthInspectorFailure(t *testing.T) {
	h := &Handler{source: stubQueue{err: errors.New("redis down")}, logger: quietLogger()}
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestWorkerRequiresHandlers(t *testing.T) {
	w := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}, Logger: quietLogger()})
	assert.Error(t, w.Run(t.Context()))
}
