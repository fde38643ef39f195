// Package log provides structured logging for the churn inference
// pipeline: a JSON slog setup, a handler that lifts cockroachdb/errors
// stack traces into a dedicated attribute, standard attribute keys for
// pipeline operations, and an in-memory logger for tests.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SetupLogger installs the process-wide slog logger: JSON output wrapped
// by ErrFmtHandler so errors logged via ErrAttr carry their stack traces.
func SetupLogger(loglevel string) {
	SetupLoggerWithWriter(loglevel, os.Stderr)
}

// SetupLoggerWithWriter is SetupLogger with an explicit output destination.
func SetupLoggerWithWriter(loglevel string, w io.Writer) {
	ops := slog.HandlerOptions{
		Level: ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(w, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))
}

// ToLogLevel maps a level name to its slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
