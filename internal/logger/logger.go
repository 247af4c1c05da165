// Package logger holds the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging to a file or stderr.
var L *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	logPrefix     = "heapctl-"
	logSuffix     = ".log"
	retentionDays = 30

	// EnvAllocDebug enables allocator debug logging to stderr when set.
	EnvAllocDebug = "TAGHEAP_LOG_ALLOC"
)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	LogDir  string     // Directory for log files. Empty: text output on stderr
	Level   slog.Level // Minimum level; the zero value is LevelInfo
}

// Init replaces L according to opts. Disabled options discard everything;
// an empty LogDir logs text to stderr; otherwise records are appended as JSON
// to today's file in LogDir after stale files are pruned.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.LogDir == "" {
		L = slog.New(slog.NewTextHandler(os.Stderr, hopts))
		return nil
	}

	f, err := openDaily(opts.LogDir, time.Now())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	L = slog.New(slog.NewJSONHandler(f, hopts))
	return nil
}

// openDaily opens the log file for day now in dir, creating dir as needed.
func openDaily(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	pruneLogs(dir, now.AddDate(0, 0, -retentionDays))
	return os.OpenFile(filepath.Join(dir, fileName(now)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func fileName(day time.Time) string {
	return logPrefix + day.Format(time.DateOnly) + logSuffix
}

// fileDay parses the date out of a name produced by fileName.
func fileDay(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, logPrefix)
	if !ok {
		return time.Time{}, false
	}
	rest, ok = strings.CutSuffix(rest, logSuffix)
	if !ok {
		return time.Time{}, false
	}
	day, err := time.Parse(time.DateOnly, rest)
	return day, err == nil
}

// AllocDebug returns a stderr debug logger when TAGHEAP_LOG_ALLOC is set,
// or nil otherwise.
func AllocDebug() *slog.Logger {
	if os.Getenv(EnvAllocDebug) == "" {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Component returns L tagged with a component attribute. The result is bound
// to the logger current at call time, so call it after Init.
func Component(name string) *slog.Logger {
	return L.With("component", name)
}

// pruneLogs removes log files dated before cutoff. Errors are ignored.
func pruneLogs(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if day, ok := fileDay(e.Name()); ok && day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
