package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"Warn":    LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestSlogLogger_StructuredAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerTo(&buf, LogLevelInfo, "json", false)

	logger.Info("runner.resume", "session_id", "sess-1", "approved", true)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "runner.resume", record["msg"])
	assert.Equal(t, "sess-1", record["session_id"])
	assert.Equal(t, true, record["approved"])
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerTo(&buf, LogLevelWarn, "json", false)

	logger.Debug("dropped")
	logger.Info("dropped too")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSlogLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerTo(&buf, LogLevelInfo, "text", false)

	logger.Error("tool failed", "tool", "get_exchange_rate")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "tool=get_exchange_rate")
}

func TestNewSlogAdapter_WrapsExistingLogger(t *testing.T) {
	var buf bytes.Buffer
	var logger Logger = NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.Info("adapted", "key", "value")

	assert.Contains(t, buf.String(), `"adapted"`)
	assert.Contains(t, buf.String(), `"value"`)
}

func TestNoOpLogger_DiscardsEverything(t *testing.T) {
	var logger Logger = NoOpLogger{}
	logger.Debug("a")
	logger.Info("b", "k", "v")
	logger.Warn("c")
	logger.Error("d")
}
