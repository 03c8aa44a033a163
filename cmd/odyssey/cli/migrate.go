package cli

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
)

// MigrateOptions configures the migrate command.
type MigrateOptions struct {
	DSN       string
	Direction string
	Steps     int
	Source    fs.FS
	Logger    *slog.Logger
	Stdout    io.Writer
	Stderr    io.Writer
}

// MigrateCommand applies or rolls back schema migrations.
func MigrateCommand(opts MigrateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DSN == "" || opts.Source == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "migrate: database dsn and migration source are required")
		return 1
	}
	switch opts.Direction {
	case "", "up":
		if err := db.Migrate(opts.DSN, opts.Source, opts.Logger); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "migrate: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(opts.Stdout, "migrations applied")
	case "down":
		if opts.Steps <= 0 {
			_, _ = fmt.Fprintln(opts.Stderr, "migrate: --steps must be positive for down")
			return 1
		}
		if err := db.MigrateDown(opts.DSN, opts.Source, opts.Steps); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "migrate: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stdout, "rolled back %d migration(s)\n", opts.Steps)
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "migrate: unknown direction %q (expected up or down)\n", opts.Direction)
		return 1
	}
	return 0
}
