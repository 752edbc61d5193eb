package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitabwire/outlookbridge/internal/config"
	"github.com/pitabwire/outlookbridge/model"
)

func TestNewLogger_Levels(t *testing.T) {
	cases := []struct {
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.InvalidLevel},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
		{"", zapcore.InfoLevel, zapcore.DebugLevel},
		{"chatty", zapcore.InfoLevel, zapcore.DebugLevel},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			logger, err := NewLogger(config.ObservabilityConfig{LogLevel: tc.level})
			require.NoError(t, err)

			assert.True(t, logger.Core().Enabled(tc.enabled))
			if tc.muted != zapcore.InvalidLevel {
				assert.False(t, logger.Core().Enabled(tc.muted))
			}
		})
	}
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestLoggerFrom(t *testing.T) {
	fallback := zap.NewNop()
	stored := zap.NewExample()

	assert.Same(t, fallback, LoggerFrom(context.Background(), fallback))
	assert.Same(t, stored, LoggerFrom(WithLogger(context.Background(), stored), fallback))
	assert.Same(t, fallback, LoggerFrom(WithLogger(context.Background(), nil), fallback))
}

func TestCallLogger_AddsCallFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	ctx := model.WithCallContext(context.Background(), &model.CallContext{
		CallID:        "call-1",
		Action:        "getEvent",
		CorrelationID: "corr-abc",
		TokenSubject:  "megan@contoso.example.com",
		TraceID:       "4bf92f3577b34da6a3ce929d0e0e4736",
	})

	CallLogger(ctx, logger).Info("dispatched")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "call-1", fields["call_id"])
	assert.Equal(t, "getEvent", fields["action"])
	assert.Equal(t, "corr-abc", fields["correlation_id"])
	assert.Equal(t, "megan@contoso.example.com", fields["token_subject"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.NotContains(t, fields, "device_id")
}

func TestCallLogger_WithoutCallContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	CallLogger(context.Background(), zap.New(core)).Info("bare")

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].Context)
}

func TestCallFields_Nil(t *testing.T) {
	assert.Nil(t, CallFields(nil))
}
