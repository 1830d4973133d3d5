package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with default config", func(t *testing.T) {
		logger := NewLogger(DefaultLoggingConfig())
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("applies level", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: "stdout"})
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "info", Format: "console", Output: "stderr"})
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	return logEntry
}

func TestWithUserContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	userLogger := WithUserContext(logger, "req-123", "u-1")
	userLogger.Info().Msg("refresh started")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "refresh started", entry["message"])
}

func TestWithSourceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	sourceLogger := WithSourceContext(logger, "openalex", "A1")
	sourceLogger.Info().Msg("extracted")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "openalex", entry["source"])
	assert.Equal(t, "A1", entry["author_id"])
}

func TestLoggerFromContext(t *testing.T) {
	t.Run("adds present ids", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithActor(WithRequestID(context.Background(), "req-9"), "admin")

		ctxLogger := LoggerFromContext(ctx, zerolog.New(&buf))
		ctxLogger.Info().Msg("x")

		entry := decodeLine(t, &buf)
		assert.Equal(t, "req-9", entry["request_id"])
		assert.Equal(t, "admin", entry["actor"])
	})

	t.Run("skips absent ids", func(t *testing.T) {
		var buf bytes.Buffer
		ctxLogger := LoggerFromContext(context.Background(), zerolog.New(&buf))
		ctxLogger.Info().Msg("x")

		entry := decodeLine(t, &buf)
		assert.NotContains(t, entry, "request_id")
		assert.NotContains(t, entry, "actor")
	})
}
