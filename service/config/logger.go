package config

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/oteladapters"
	"github.com/mallorca-activities/activitystore-go/activitystore/zapadapter"
)

// Logger is satisfied by every configured logger backend.
type Logger interface {
	activitystore.Logger
	activitystore.ContextualLogger
}

// NewLogger creates the logger selected by LOG_BACKEND. The returned func flushes buffered entries.
//   - slog writes JSON lines to out
//   - zap uses the production or development preset selected by LOG_MODE
//   - otel emits through the OpenTelemetry slog bridge to the global LoggerProvider
func (cfg Config) NewLogger(out io.Writer) (Logger, func(), error) {
	switch cfg.LogBackend {
	case LogBackendZap:
		logger, err := zapadapter.New(cfg.LogMode, cfg.LogLevel)
		if err != nil {
			return nil, func() {}, err
		}

		return logger, logger.Sync, nil

	case LogBackendOTel:
		return otelLogger{oteladapters.NewSlogBridgeLogger(cfg.OTel.ServiceName)}, func() {}, nil

	default:
		handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)})
		return slog.New(handler), func() {}, nil
	}
}

// otelLogger adds the context-free methods to the bridge logger.
type otelLogger struct {
	*oteladapters.SlogBridgeLogger
}

func (l otelLogger) Debug(msg string, args ...any) {
	l.DebugContext(context.Background(), msg, args...)
}

func (l otelLogger) Info(msg string, args ...any) {
	l.InfoContext(context.Background(), msg, args...)
}

func (l otelLogger) Warn(msg string, args ...any) {
	l.WarnContext(context.Background(), msg, args...)
}

func (l otelLogger) Error(msg string, args ...any) {
	l.ErrorContext(context.Background(), msg, args...)
}

func slogLevel(level string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return slog.LevelInfo
	}

	return parsed
}
