// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Cold-path diagnostic logging
//
// Purpose:
//   - One place every package reports setup steps, warnings and failures.
//   - Backed by a log/slog logger installed once by the binary.
//
// Notes:
//   - Callers pass a short upper-case tag ("BIND", "PIN", "FLUSH") plus a
//     message and optional slog key/value pairs.
//   - Until SetLogger is called, output goes to slog.Default().
//
// ⚠️ Never invoke in hot loops; use only in setup, shutdown and failure paths.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

// SetLogger installs l as the sink for every Drop* call.
func SetLogger(l *slog.Logger) {
	current.Store(l)
}

// Logger returns the installed logger or slog.Default().
func Logger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// NewLogger builds a slog logger writing to w. level is one of debug, info,
// warn, error (default info); format is text or json (default text).
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// DropError logs err under prefix at error level. A nil err logs the prefix
// alone as a warning, which is how tagged traces are emitted.
func DropError(prefix string, err error, args ...any) {
	if err != nil {
		Logger().Error(err.Error(), append([]any{"tag", prefix}, args...)...)
		return
	}
	Logger().Warn(prefix, args...)
}

// DropWarning logs a recoverable problem: a failed pin, a short write.
func DropWarning(prefix, message string, args ...any) {
	Logger().Warn(message, append([]any{"tag", prefix}, args...)...)
}

// DropMessage logs a lifecycle event at info level.
func DropMessage(prefix, message string, args ...any) {
	Logger().Info(message, append([]any{"tag", prefix}, args...)...)
}

// DropDebug logs detail that is only useful when chasing a problem.
func DropDebug(prefix, message string, args ...any) {
	Logger().Debug(message, append([]any{"tag", prefix}, args...)...)
}
