package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger tagged with the service name and environment.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	opts := &slog.HandlerOptions{AddSource: cfg.LogLevel == "debug", Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With(
		slog.String("service", "odyssey-rbac"),
		slog.String("env", cfg.AppEnv),
	)
}
