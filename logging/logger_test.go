package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)
	require.NotNil(t, logger)

	logger.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
}

func TestNewJSONLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewJSONLogger(buf, slog.LevelInfo)
	require.NotNil(t, logger)

	logger.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, `"msg":"test message"`)
	assert.Contains(t, output, `"key":"value"`)

	var parsed map[string]any
	err := json.Unmarshal([]byte(output), &parsed)
	require.NoError(t, err)
	assert.Equal(t, "test message", parsed["msg"])
	assert.Equal(t, "value", parsed["key"])
}

func TestNewDevelopmentLogger(t *testing.T) {
	logger := NewDevelopmentLogger()
	require.NotNil(t, logger)
	logger.Debug("debug message")
	logger.Info("info message")
}

func TestNewProductionLogger(t *testing.T) {
	logger := NewProductionLogger()
	require.NotNil(t, logger)
	logger.Info("info message")
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	require.NotNil(t, logger)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	childLogger := logger.With("parent_key", "parent_value")
	require.NotNil(t, childLogger)

	childLogger.Info("child message", "child_key", "child_value")

	output := buf.String()
	assert.Contains(t, output, "parent_key=parent_value")
	assert.Contains(t, output, "child_key=child_value")
}

func TestLogger_WithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	compLogger := logger.WithComponent("recovery")
	compLogger.Info("component message")

	output := buf.String()
	assert.Contains(t, output, "component=recovery")
}

func TestLogger_WithPayloadType(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	typeLogger := logger.WithPayloadType("undo")
	typeLogger.Info("write")

	output := buf.String()
	assert.Contains(t, output, "payload_type=undo")
}

func TestAttributeConstructors(t *testing.T) {
	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
	}{
		{"Component", Component("writer"), "component=writer"},
		{"PayloadType", PayloadType("block"), "payload_type=block"},
		{"Key", Key("deadbeef"), "key=deadbeef"},
		{"Segment", Segment(7), "segment=7"},
		{"Backend", Backend("leveldb"), "backend=leveldb"},
		{"Count", Count(42), "count=42"},
		{"Size", Size(1024), "size_bytes=1024"},
		{"Path", Path("/var/lib/blockvault"), "path=/var/lib/blockvault"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewTextLogger(buf, slog.LevelInfo)
			logger.Info("test", tt.attr)

			output := buf.String()
			assert.Contains(t, output, tt.expected)
		})
	}
}

func TestDurationAttribute(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewJSONLogger(buf, slog.LevelInfo)

	d := 150 * time.Millisecond
	logger.Info("test", Duration(d))

	var parsed map[string]any
	err := json.Unmarshal(buf.Bytes(), &parsed)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, parsed["duration_ms"], 0.1)
}

func TestErrorAttribute(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	err := assert.AnError
	logger.Info("test", Error(err))

	output := buf.String()
	assert.Contains(t, output, "error=")
}

func TestErrorAttribute_Nil(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	logger.Info("test", Error(nil))

	output := buf.String()
	assert.NotContains(t, output, "error=")
}

func TestLogLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestNopHandler(t *testing.T) {
	h := nopHandler{}

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.Enabled(context.Background(), slog.LevelError))
	assert.NoError(t, h.Handle(context.Background(), slog.Record{}))
	assert.Equal(t, h, h.WithAttrs(nil))
	assert.Equal(t, h, h.WithGroup("test"))
}

func TestChainedWith(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	chainedLogger := logger.
		WithComponent("pruner").
		WithPayloadType("merkle").
		With("custom", "value")

	chainedLogger.Info("chained message")

	output := buf.String()
	assert.Contains(t, output, "component=pruner")
	assert.Contains(t, output, "payload_type=merkle")
	assert.Contains(t, output, "custom=value")
	assert.Contains(t, output, "chained message")
}
