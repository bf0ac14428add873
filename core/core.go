package core

import "github.com/agentflow/agentflow/logging"

// logSink gives RunContext and ToolContext their LogDebug, LogInfo, LogWarn
// and LogError helpers. It never holds a nil logger; newLogSink substitutes
// the no-op implementation.
type logSink struct {
	base logging.Logger
}

func newLogSink(l logging.Logger) logSink {
	if l == nil {
		return logSink{base: logging.NoOpLogger{}}
	}
	return logSink{base: l}
}

// Logger returns the wrapped logger for callers that pass it further down.
func (s logSink) Logger() logging.Logger { return s.base }

func (s logSink) LogDebug(msg string, args ...any) { s.base.Debug(msg, args...) }

func (s logSink) LogInfo(msg string, args ...any) { s.base.Info(msg, args...) }

func (s logSink) LogWarn(msg string, args ...any) { s.base.Warn(msg, args...) }

func (s logSink) LogError(msg string, args ...any) { s.base.Error(msg, args...) }
