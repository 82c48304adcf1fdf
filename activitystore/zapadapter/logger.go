// Package zapadapter plugs go.uber.org/zap into the activitystore logging interfaces.
package zapadapter

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	keyTraceID = "trace_id"
	keySpanID  = "span_id"
	redacted   = "[REDACTED]"
)

// Logger implements activitystore.Logger and activitystore.ContextualLogger on a zap.SugaredLogger.
// The contextual methods add the trace and span ids of an active span.
// Values of keys that look like credentials are replaced before they reach the core.
type Logger struct {
	sugared *zap.SugaredLogger
}

// New builds a zap logger for the given mode ("prod" or "production" selects JSON output) and level.
func New(mode string, level string) (*Logger, error) {
	var cfg zap.Config

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	atomicLevel, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	cfg.Level = atomicLevel

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return Wrap(zapLogger), nil
}

// Wrap adapts an existing zap logger.
func Wrap(logger *zap.Logger) *Logger {
	return &Logger{sugared: logger.Sugar()}
}

// Sync flushes buffered entries; the error from syncing stdout or stderr is not interesting.
func (l *Logger) Sync() {
	_ = l.sugared.Sync()
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugared: l.sugared.With(sanitize(keysAndValues)...)}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.sugared.Debugw(msg, sanitize(args)...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.sugared.Infow(msg, sanitize(args)...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.sugared.Warnw(msg, sanitize(args)...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.sugared.Errorw(msg, sanitize(args)...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.sugared.Debugw(msg, withTrace(ctx, sanitize(args))...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.sugared.Infow(msg, withTrace(ctx, sanitize(args))...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.sugared.Warnw(msg, withTrace(ctx, sanitize(args))...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.sugared.Errorw(msg, withTrace(ctx, sanitize(args))...)
}

func withTrace(ctx context.Context, args []any) []any {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return args
	}

	return append(args, keyTraceID, spanCtx.TraceID().String(), keySpanID, spanCtx.SpanID().String())
}

func sanitize(args []any) []any {
	if len(args) == 0 {
		return args
	}

	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		if i == len(args)-1 {
			out = append(out, args[i])
			break
		}

		key, ok := args[i].(string)
		if ok && isSecretKey(key) {
			out = append(out, key, redacted)
			continue
		}

		out = append(out, args[i], args[i+1])
	}

	return out
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)

	for _, fragment := range []string{"token", "authorization", "password", "secret", "apikey", "api_key"} {
		if strings.Contains(k, fragment) {
			return true
		}
	}

	return false
}

var (
	_ activitystore.Logger           = (*Logger)(nil)
	_ activitystore.ContextualLogger = (*Logger)(nil)
)
