package observability

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/outlookbridge/internal/config"
	"github.com/pitabwire/outlookbridge/model"
)

type loggerKey struct{}

// NewLogger builds the process logger. Output goes to stdout as JSON unless
// log_format is "console". An unparsable level falls back to info.
//
// Levels: error for panics and listener failures, warn for failed calls and
// an open breaker, info for dispatch and lifecycle, debug for session reuse
// and retries.
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.OutputPaths = []string{"stdout"}
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	if cfg.LogFormat == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zc.Build()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in ctx, or fallback.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// CallFields renders the call context as log fields. Empty values are left
// out; call_id and action are always present.
func CallFields(cctx *model.CallContext) []zap.Field {
	if cctx == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("call_id", cctx.CallID),
		zap.String("action", cctx.Action),
	}
	for _, kv := range [...]struct{ key, val string }{
		{"correlation_id", cctx.CorrelationID},
		{"token_subject", cctx.TokenSubject},
		{"device_id", cctx.DeviceID},
		{"trace_id", cctx.TraceID},
	} {
		if kv.val != "" {
			fields = append(fields, zap.String(kv.key, kv.val))
		}
	}
	return fields
}

// CallLogger is LoggerFrom(ctx, fallback) carrying the call's fields.
func CallLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)
	if fields := CallFields(model.CallContextFrom(ctx)); len(fields) > 0 {
		return logger.With(fields...)
	}
	return logger
}
