package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is a thin enum for user friendly level configuration decoupled
// from slog's numeric levels.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < LogLevelDebug || l > LogLevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a case-insensitive level name ("debug", "info",
// "warn", "error") into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var slogLevels = map[LogLevel]slog.Level{
	LogLevelDebug: slog.LevelDebug,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelError: slog.LevelError,
}

func slogLevel(l LogLevel) slog.Level {
	if lv, ok := slogLevels[l]; ok {
		return lv
	}
	return slog.LevelInfo
}

// Logger is the minimal logging interface AgentFlow components depend on.
// Arguments after the message follow slog conventions: alternating keys
// and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AgentFlowLogger is the standard slog-backed Logger. Construction picks
// the handler (JSON or text) and the minimum level; everything else is
// handed to slog untouched, so key/value arguments come out as structured
// attributes. The embedded slog methods already carry the Logger
// signatures, so there is no delegation layer.
type AgentFlowLogger struct {
	*slog.Logger
}

// NewSlogAdapter wraps an existing *slog.Logger so it can be passed
// wherever a Logger is expected.
func NewSlogAdapter(logger *slog.Logger) *AgentFlowLogger {
	return &AgentFlowLogger{Logger: logger}
}

// NewSlogLogger builds an AgentFlowLogger writing to standard output.
// Format is "json" or "text"; addSource includes the callsite in each
// record.
func NewSlogLogger(level LogLevel, format string, addSource bool) *AgentFlowLogger {
	return NewSlogLoggerTo(os.Stdout, level, format, addSource)
}

// NewSlogLoggerTo is NewSlogLogger with an explicit output writer.
func NewSlogLoggerTo(w io.Writer, level LogLevel, format string, addSource bool) *AgentFlowLogger {
	opts := &slog.HandlerOptions{Level: slogLevel(level), AddSource: addSource}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &AgentFlowLogger{Logger: slog.New(handler)}
}

// NoOpLogger discards everything. It backs tests and disabled logging.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}

func (NoOpLogger) Info(string, ...any) {}

func (NoOpLogger) Warn(string, ...any) {}

func (NoOpLogger) Error(string, ...any) {}
