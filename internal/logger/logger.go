// Package logger builds the process logger from the logging config.
package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/claude/spotter/internal/config"
)

const (
	asyncBuffer  = 1024
	asyncWorkers = 1
)

// Closer flushes and stops a logger's background writer.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// New creates a text logger writing to w. With cfg.Async the records go
// through a buffered AsyncHandler; the returned Closer drains it.
func New(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	if !cfg.Async {
		return slog.New(handler), nopCloser{}
	}
	async := NewAsyncHandler(handler, asyncBuffer, asyncWorkers)
	return slog.New(async), async
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
