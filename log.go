package tdm

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentRegistry Component = "registry"
	ComponentPort     Component = "port"
	ComponentArbiter  Component = "arbiter"
	ComponentCapture  Component = "capture"
	ComponentPlayback Component = "playback"
	ComponentDriver   Component = "driver"
	ComponentRecorder Component = "recorder"
)

var (
	logger   *slog.Logger
	logLevel = new(slog.LevelVar)
	logMu    sync.RWMutex
)

func init() {
	logLevel.Set(slog.LevelWarn)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// SetLogLevel sets the minimum level of the package logger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// LogLevel returns the current minimum level.
func LogLevel() slog.Level {
	return logLevel.Level()
}

// SetLogger replaces the package logger. A nil logger discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	logMu.Lock()
	defer logMu.Unlock()

	logger = l
}

// NewLogger creates a text logger writing to w at the package level.
func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func componentLogger(c Component) *slog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()

	return logger.With("component", string(c))
}

func logDebug(c Component, msg string, args ...any) {
	componentLogger(c).Debug(msg, args...)
}

func logInfo(c Component, msg string, args ...any) {
	componentLogger(c).Info(msg, args...)
}

func logWarn(c Component, msg string, args ...any) {
	componentLogger(c).Warn(msg, args...)
}

func logError(c Component, msg string, args ...any) {
	componentLogger(c).Error(msg, args...)
}
