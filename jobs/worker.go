package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts       asynq.RedisConnOpt
	Logger          *slog.Logger
	Concurrency     int
	ShutdownTimeout time.Duration
}

// Worker processes maintenance tasks and owns the optional cron scheduler.
type Worker struct {
	redisOpts asynq.RedisConnOpt
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
	handlers  int
	schedules int
}

// NewWorker constructs a Worker bound to the maintenance queue.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 15 * time.Second
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{QueueMaintenance: 1},
		ShutdownTimeout: shutdown,
		LogLevel:        asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("job failed",
				slog.String("task", task.Type()),
				slog.Int("retry", retried),
				slog.Int("max_retry", maxRetry),
				slog.Any("error", err))
		}),
	})
	return &Worker{
		redisOpts: cfg.RedisOpts,
		server:    srv,
		mux:       asynq.NewServeMux(),
		logger:    logger,
	}
}

// Use installs middleware around every task handler.
func (w *Worker) Use(mws ...asynq.MiddlewareFunc) {
	w.mux.Use(mws...)
}

// Handle registers the handler for a task type.
func (w *Worker) Handle(taskType string, handler asynq.Handler) {
	if taskType == "" || handler == nil {
		return
	}
	w.mux.Handle(taskType, handler)
	w.handlers++
}

// Schedule enqueues task on the given cron spec once the worker runs.
func (w *Worker) Schedule(spec string, task *asynq.Task, opts ...asynq.Option) error {
	if spec == "" || task == nil {
		return nil
	}
	if w.scheduler == nil {
		w.scheduler = asynq.NewScheduler(w.redisOpts, &asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.WarnLevel,
		})
	}
	if _, err := w.scheduler.Register(spec, task, opts...); err != nil {
		return fmt.Errorf("jobs: schedule %s on %q: %w", task.Type(), spec, err)
	}
	w.schedules++
	return nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("jobs: worker not configured")
	}
	if w.handlers == 0 {
		return errors.New("jobs: no task handlers registered")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
	}
	w.logger.Info("jobs worker running",
		slog.String("queue", QueueMaintenance),
		slog.Int("handlers", w.handlers),
		slog.Int("schedules", w.schedules))

	<-ctx.Done()
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}
