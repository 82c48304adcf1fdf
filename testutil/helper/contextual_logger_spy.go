package helper

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

// ContextualLoggerSpy captures contextual log calls together with the span context active at log time,
// so tests can verify that log records correlate with traces.
type ContextualLoggerSpy struct {
	mu      sync.Mutex
	records []SpyContextualLogRecord
}

// SpyContextualLogRecord is one captured call.
type SpyContextualLogRecord struct {
	Level       string
	Message     string
	Args        []any
	SpanContext trace.SpanContext
}

func NewContextualLoggerSpy() *ContextualLoggerSpy {
	return &ContextualLoggerSpy{}
}

func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "debug", msg, args)
}

func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "info", msg, args)
}

func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "warn", msg, args)
}

func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "error", msg, args)
}

func (s *ContextualLoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyContextualLogRecord{
		Level:       level,
		Message:     msg,
		Args:        args,
		SpanContext: trace.SpanContextFromContext(ctx),
	})
}

// Records returns a copy of all captured calls in order.
func (s *ContextualLoggerSpy) Records() []SpyContextualLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyContextualLogRecord(nil), s.records...)
}

// Find returns the first record with the given level and message.
func (s *ContextualLoggerSpy) Find(level, message string) (SpyContextualLogRecord, bool) {
	for _, record := range s.Records() {
		if record.Level == level && record.Message == message {
			return record, true
		}
	}

	return SpyContextualLogRecord{}, false
}

// Arg returns the value logged for key.
func (r SpyContextualLogRecord) Arg(key string) (any, bool) {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1], true
		}
	}

	return nil, false
}

var _ activitystore.ContextualLogger = (*ContextualLoggerSpy)(nil)
