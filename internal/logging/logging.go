// Package logging is the structured-logging shim shared by the transports
// and the Bus façade. Callers that embed cankit in an application can
// replace the global logger with Set, or pass a *slog.Logger explicitly via
// each package's WithLogger option.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// DefaultLevel is cankit's own default verbosity. Unlike the teacher's
// standalone server, which runs as the foreground process and defaults to
// Info, cankit is linked into someone else's binary: a library that talks
// at Info by default drowns out the embedding app's own logs, so the
// package-global logger starts at Warn until Set or New raises it.
const DefaultLevel = slog.LevelWarn

// Global structured logger. Initialized with a reasonable text handler so
// the library is never silent by default, even if the embedding app never
// calls Set.
var logger atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: DefaultLevel}))
	logger.Store(l)
}

// L returns the current global logger.
func L() *slog.Logger { return logger.Load() }

// Set replaces the global logger.
func Set(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// New creates a new logger with given level, format ("text" or "json"), and optional writer (defaults stderr).
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}

// Event logs one structured event with event as the first positional
// argument, the convention every cankit call site uses ("bcm_tx_setup",
// "raw_filter_installed", "recv_timeout", ...) so a log pipeline can filter
// on event name alone regardless of the attributes that follow it.
func Event(l *slog.Logger, level slog.Level, event string, args ...any) {
	if l == nil {
		return
	}
	l.Log(context.Background(), level, event, args...)
}
