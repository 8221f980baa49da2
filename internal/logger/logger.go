// Package logger provides leveled logging for druginfo.
// Debug and Info messages are only emitted in verbose mode (--verbose);
// warnings and errors are always emitted. Records are written through a
// log/slog text handler so CLI, service and HTTP logs share one format.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	base              = newBase(os.Stderr, false)
)

func newBase(w io.Writer, v bool) *slog.Logger {
	level := slog.LevelWarn
	if v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = newBase(output, v)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newBase(w, verbose)
}

// Slog returns the underlying structured logger.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func logf(level slog.Level, format string, args ...any) {
	mu.RLock()
	l := base
	mu.RUnlock()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Info logs an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Printer adapts the package logger to Println/Printf style consumers
// such as HTTP middleware.
type Printer struct{}

// Println logs the operands at info level.
func (Printer) Println(v ...any) {
	Info("%s", fmt.Sprint(v...))
}

// Printf logs a formatted message at info level.
func (Printer) Printf(format string, v ...any) {
	Info(format, v...)
}
