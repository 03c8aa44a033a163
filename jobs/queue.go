package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
)

// pruneUniqueTTL collapses manual and cron prune requests issued close together.
const pruneUniqueTTL = time.Minute

// ErrAlreadyQueued reports that an identical task is still pending.
var ErrAlreadyQueued = errors.New("jobs: task already queued")

// Client submits maintenance tasks.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq-backed client.
func NewClient(redisOpts asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueSessionsPrune requests an immediate prune pass.
func (c *Client) EnqueueSessionsPrune(ctx context.Context, source string) (*asynq.TaskInfo, error) {
	task, err := NewSessionsPruneTask(source)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Unique(pruneUniqueTTL))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, ErrAlreadyQueued
	}
	return info, err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// QueueSnapshot summarises the maintenance queue.
type QueueSnapshot struct {
	Queue     string `json:"queue"`
	Paused    bool   `json:"paused"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

type queueInfoSource interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Snapshot reads the maintenance queue state. A queue that has never seen a
// task reports zero counts.
func Snapshot(inspector *asynq.Inspector) (QueueSnapshot, error) {
	if inspector == nil {
		return QueueSnapshot{Queue: QueueMaintenance}, nil
	}
	return snapshot(inspector)
}

func snapshot(src queueInfoSource) (QueueSnapshot, error) {
	out := QueueSnapshot{Queue: QueueMaintenance}
	info, err := src.GetQueueInfo(QueueMaintenance)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return out, nil
		}
		return out, err
	}
	if info != nil {
		out.Paused = info.Paused
		out.Pending = info.Pending
		out.Active = info.Active
		out.Scheduled = info.Scheduled
		out.Retry = info.Retry
		out.Failed = info.Failed
	}
	return out, nil
}

// Handler exposes the maintenance queue over HTTP.
type Handler struct {
	source queueInfoSource
	logger *slog.Logger
}

// NewHandler constructs the jobs HTTP handler. A nil inspector reports an empty queue.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	h := &Handler{logger: logger}
	if inspector != nil {
		h.source = inspector
	}
	return h
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		httpx.JSON(w, http.StatusOK, QueueSnapshot{Queue: QueueMaintenance})
		return
	}
	out, err := snapshot(h.source)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "the job queue could not be inspected")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
