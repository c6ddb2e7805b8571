// Package logging provides component-tagged logging helpers over log/slog
// for the passless agent. All daemon-side packages log through these helpers
// so that every line carries a component attribute.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// ParseLevel converts a config string into a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

// Init installs the process-wide logger. format is "text" or "json".
func Init(level slog.Level, format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	logger.Store(slog.New(handler))
}

// Debug logs a debug message for the given component.
func Debug(component, format string, args ...any) {
	logger.Load().Debug(fmt.Sprintf(format, args...), "component", component)
}

// Info logs an info message for the given component.
func Info(component, format string, args ...any) {
	logger.Load().Info(fmt.Sprintf(format, args...), "component", component)
}

// Warn logs a warning for the given component.
func Warn(component, format string, args ...any) {
	logger.Load().Warn(fmt.Sprintf(format, args...), "component", component)
}

// Error logs an error for the given component.
func Error(component, format string, args ...any) {
	logger.Load().Error(fmt.Sprintf(format, args...), "component", component)
}
