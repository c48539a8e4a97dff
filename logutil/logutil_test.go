package logutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	var b bytes.Buffer
	logger, err := NewLogger(&b, LevelTrace, "text")
	require.NoError(t, err)

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	slog.SetDefault(logger)

	Trace("cold start", "tokens", 3)
	out := b.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "source=logutil_test.go:")
	assert.Contains(t, out, `msg="cold start" tokens=3`)
}

func TestTraceDisabled(t *testing.T) {
	var b bytes.Buffer
	logger, err := NewLogger(&b, slog.LevelDebug, "text")
	require.NoError(t, err)

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	slog.SetDefault(logger)

	Trace("hidden")
	assert.Empty(t, b.String())
}

func TestNewLoggerJSON(t *testing.T) {
	var b bytes.Buffer
	logger, err := NewLogger(&b, slog.LevelInfo, "json")
	require.NoError(t, err)

	logger.Info("ready", "tokens", 12)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(b.String())), &record))
	assert.Equal(t, "ready", record["msg"])
	assert.Equal(t, "INFO", record["level"])
	assert.EqualValues(t, 12, record["tokens"])
}

func TestNewLoggerUnknownFormat(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, slog.LevelInfo, "xml")
	assert.Error(t, err)
}
