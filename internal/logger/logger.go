// Package logger builds the process-wide *slog.Logger from configuration.
//
// The logger is constructed once in main and passed explicitly to every
// component. There is no package-level global.
package logger

import (
	"io"
	"log/slog"

	"github.com/geniesugar/glucose-monitor/internal/config"
)

const serviceName = "glucose-monitor"

// New returns a JSON or text logger writing to w at the configured level.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.Level == slog.LevelDebug,
	}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With(slog.String("service", serviceName))
}

// Discard returns a logger that drops everything. Used by tests and the CLI's
// quiet mode.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
