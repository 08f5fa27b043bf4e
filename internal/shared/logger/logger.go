package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func New(app, env string) *slog.Logger {
	return NewWithLevel(os.Stdout, app, env, "info")
}

func NewWithLevel(w io.Writer, app, env, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})

	return slog.New(h).With(
		slog.String("app", app),
		slog.String("env", env),
	)
}

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger for tests.
func Discard() *slog.Logger {
	return NewWithLevel(io.Discard, "test", "test", "debug")
}
