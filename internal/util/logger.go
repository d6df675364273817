package util

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

type Logger = *slog.Logger

// NewLogger builds the process logger: a colorized handler when stdout is a
// terminal, plain text otherwise (log collectors get parseable output).
func NewLogger(level slog.Level) *slog.Logger {
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
