package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-rbac/jobs"
)

// JobsOptions configures the jobs command.
type JobsOptions struct {
	RedisAddr string
	Args      []string
	Stdout    io.Writer
	Stderr    io.Writer
}

// JobsCommand runs `jobs trigger [NAME]`, `jobs stats` or `jobs schedules`
// against the maintenance queue. It returns 2 on usage errors.
func JobsCommand(ctx context.Context, opts JobsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(opts.Args) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs: expected trigger, stats or schedules")
		return 2
	}
	redisOpts := asynq.RedisClientOpt{Addr: opts.RedisAddr}

	var err error
	switch opts.Args[0] {
	case "trigger":
		err = triggerJob(ctx, redisOpts, opts.Args[1:], opts.Stdout)
	case "stats":
		err = printQueueStats(redisOpts, opts.Stdout)
	case "schedules":
		err = printSchedules(redisOpts, opts.Stdout)
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "jobs: unknown subcommand %q\n", opts.Args[0])
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs: %v\n", err)
		return 1
	}
	return 0
}

func triggerJob(ctx context.Context, redisOpts asynq.RedisClientOpt, args []string, out io.Writer) error {
	name := jobs.TaskSessionsPrune
	if len(args) > 0 {
		name = args[0]
	}
	if name != jobs.TaskSessionsPrune {
		return fmt.Errorf("unsupported job %q", name)
	}
	client := jobs.NewClient(redisOpts)
	defer func() { _ = client.Close() }()

	info, err := client.EnqueueSessionsPrune(ctx, "cli")
	if errors.Is(err, jobs.ErrAlreadyQueued) {
		_, _ = fmt.Fprintf(out, "%s already queued\n", name)
		return nil
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return nil
}

func printQueueStats(redisOpts asynq.RedisClientOpt, out io.Writer) error {
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	snap, err := jobs.Snapshot(inspector)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "queue=%s paused=%t pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
		snap.Queue, snap.Paused, snap.Pending, snap.Active, snap.Scheduled, snap.Retry, snap.Failed)
	return nil
}

func printSchedules(redisOpts asynq.RedisClientOpt, out io.Writer) error {
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	entries, err := inspector.SchedulerEntries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "no scheduled entries (is the worker running?)")
		return nil
	}
	for _, entry := range entries {
		_, _ = fmt.Fprintf(out, "%s spec=%q next=%s\n", entry.Task.Type(), entry.Spec, entry.Next.UTC().Format(time.RFC3339))
	}
	return nil
}
