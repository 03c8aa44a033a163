package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-rbac/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-rbac/internal/app"
	"github.com/odyssey-erp/odyssey-rbac/internal/observability"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/jobs"
	"github.com/odyssey-erp/odyssey-rbac/migrations"
)

const usage = `usage: odyssey [command]

commands:
  serve                          run the HTTP server (default)
  check --user N --perm CODENAME print the authorization decision
  migrate [up|down] [--steps N]  apply or roll back schema migrations
  jobs trigger [NAME]            enqueue a maintenance job (default sessions:prune)
  jobs stats                     print maintenance queue statistics
  jobs schedules                 list cron entries registered by the worker
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "check":
		os.Exit(runCheck(ctx, cfg, logger, args))
	case "migrate":
		os.Exit(runMigrate(cfg, logger, args))
	case "jobs":
		os.Exit(runJobs(ctx, cfg, args))
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// openBackend returns the configured persistence and a release func.
func openBackend(ctx context.Context, cfg *app.Config, logger *slog.Logger) (app.Backend, func(), error) {
	if cfg.UsesMemoryStore() {
		mem, err := app.NewMemoryBackend(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
		if err != nil {
			return app.Backend{}, nil, err
		}
		logger.Warn("using in-memory rbac store; state is lost on exit", slog.String("admin", cfg.SeedAdminEmail))
		return mem.Backend, func() {}, nil
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.PGDSN, migrations.FS, logger); err != nil {
			return app.Backend{}, nil, err
		}
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return app.Backend{}, nil, err
	}
	return app.PostgresBackend(pool), pool.Close, nil
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	backend, release, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	rt, err := app.Build(app.BuildParams{
		Logger:    logger,
		Config:    cfg,
		Backend:   backend,
		Redis:     redisClient,
		Metrics:   observability.NewMetrics(),
		Jobs:      jobs.NewHandler(inspector, logger),
		AccessLog: !cfg.IsProduction(),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      rt.Handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.RBACStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runCheck(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "user id to evaluate")
	codename := fs.String("perm", "", "permission codename (resource.action)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	backend, release, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		return 1
	}
	defer release()

	rt, err := app.Build(app.BuildParams{Logger: logger, Config: cfg, Backend: backend, Redis: redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})})
	if err != nil {
		logger.Error("build runtime", slog.Any("error", err))
		return 1
	}
	checker, err := cli.NewCheckCLI(rt.RBAC, rt.Evaluator)
	if err != nil {
		logger.Error("init check", slog.Any("error", err))
		return 1
	}
	return checker.CheckCommand(ctx, cli.CheckOptions{UserID: *userID, Codename: *codename, JSONOutput: *asJSON})
}

func runMigrate(cfg *app.Config, logger *slog.Logger, args []string) int {
	direction := "up"
	if len(args) > 0 && (args[0] == "up" || args[0] == "down") {
		direction, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return cli.MigrateCommand(cli.MigrateOptions{
		DSN:       cfg.PGDSN,
		Direction: direction,
		Steps:     *steps,
		Source:    migrations.FS,
		Logger:    logger,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	return cli.JobsCommand(ctx, cli.JobsOptions{RedisAddr: cfg.RedisAddr, Args: args})
}
