package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-rbac/internal/jobs"
)

const (
	// QueueMaintenance holds housekeeping tasks for the authorization service.
	QueueMaintenance = "rbac_maintenance"
	// TaskSessionsPrune removes expired login sessions.
	TaskSessionsPrune = "sessions:prune"
)

// SessionsPrunePayload carries the trigger source for audit in logs.
type SessionsPrunePayload struct {
	Source string `json:"source"`
}

// NewSessionsPruneTask constructs the prune task.
func NewSessionsPruneTask(source string) (*asynq.Task, error) {
	data, err := json.Marshal(SessionsPrunePayload{Source: source})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsPrune, data, asynq.Queue(QueueMaintenance), asynq.MaxRetry(3)), nil
}

// SessionPruner deletes expired login sessions.
type SessionPruner interface {
	PruneSessions(ctx context.Context) (int64, error)
}

// SessionsPruneJob handles TaskSessionsPrune. Run counts come from the
// worker's metrics middleware; the job only reports how many rows it removed.
type SessionsPruneJob struct {
	Pruner  SessionPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewSessionsPruneJob initialises the prune handler.
func NewSessionsPruneJob(pruner SessionPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsPruneJob {
	return &SessionsPruneJob{Pruner: pruner, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle runs one prune pass.
func (j *SessionsPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("sessions prune: handler not configured")
	}
	var payload SessionsPrunePayload
	if len(t.Payload()) > 0 {
		if uerr := json.Unmarshal(t.Payload(), &payload); uerr != nil {
			return asynq.SkipRetry
		}
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	logger := j.logger().With(slog.String("source", payload.Source))
	removed, err := j.Pruner.PruneSessions(ctx)
	if err != nil {
		logger.Error("prune sessions failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddPrunedSessions(removed)
	logger.Info("pruned expired sessions", slog.Int64("removed", removed))
	return nil
}

func (j *SessionsPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
