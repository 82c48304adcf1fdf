// Package instrument holds the logging, tracing and metrics plumbing shared by the storage engines.
// Every collector is optional; a zero Observer does nothing.
package instrument

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	MetricOperationDuration = "activitystore_operation_duration_seconds"
	MetricActivitiesRead    = "activitystore_activities_returned"
	MetricBackendErrors     = "activitystore_database_errors_total"
	MetricNotFound          = "activitystore_not_found_total"
	SpanNamePrefix          = "activitystore."
	AttrOperation           = "operation"
	AttrErrorType           = "error_type"
	AttrActivityCount       = "activity_count"
	AttrDurationMS          = "duration_ms"
	AttrDBSystem            = "db.system"
	AttrError               = "error"
	LabelStatus             = "status"
	logMsgOperation         = "activitystore operation: "
)

// Observer fans log records, spans and metrics out to whatever collectors are configured.
type Observer struct {
	Logger           activitystore.Logger
	ContextualLogger activitystore.ContextualLogger
	Metrics          activitystore.MetricsCollector
	Tracing          activitystore.TracingCollector
	System           string
}

// === Logging ===

// LogStatement logs an executed statement (SQL or HTTP request) with its duration at debug level.
// A contextual logger takes precedence so that log records carry the trace correlation.
func (o *Observer) LogStatement(ctx context.Context, message string, statementKey string, statement string, duration time.Duration) {
	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.DebugContext(ctx, message, AttrDurationMS, ToMilliseconds(duration), statementKey, statement)
	case o.Logger != nil:
		o.Logger.Debug(message, AttrDurationMS, ToMilliseconds(duration), statementKey, statement)
	}
}

// LogOperation logs operational information at info level.
func (o *Observer) LogOperation(ctx context.Context, action string, args ...any) {
	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	case o.Logger != nil:
		o.Logger.Info(logMsgOperation+action, args...)
	}
}

// LogWarn logs non-critical failures such as closing rows.
func (o *Observer) LogWarn(ctx context.Context, message string, err error) {
	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.WarnContext(ctx, message, AttrError, err.Error())
	case o.Logger != nil:
		o.Logger.Warn(message, AttrError, err.Error())
	}
}

// LogError logs error information at the error level.
func (o *Observer) LogError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{AttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.ErrorContext(ctx, message, allArgs...)
	case o.Logger != nil:
		o.Logger.Error(message, allArgs...)
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func ToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// === Tracing ===

// Span wraps the span of one operation; all methods are no-ops without a tracing collector.
type Span struct {
	collector activitystore.TracingCollector
	span      activitystore.SpanContext
}

// StartTracing opens a span named after the operation.
func (o *Observer) StartTracing(ctx context.Context, operation string) (*Span, context.Context) {
	if o.Tracing == nil {
		return &Span{}, ctx
	}

	attrs := map[string]string{AttrOperation: operation}
	if o.System != "" {
		attrs[AttrDBSystem] = o.System
	}

	newCtx, span := o.Tracing.StartSpan(ctx, SpanNamePrefix+operation, attrs)

	return &Span{collector: o.Tracing, span: span}, newCtx
}

func (s *Span) FinishSuccess(activityCount int, duration time.Duration) {
	s.finish(activitystore.StatusSuccess, duration, map[string]string{
		AttrActivityCount: strconv.Itoa(activityCount),
	})
}

func (s *Span) FinishNotFound(duration time.Duration) {
	s.finish(activitystore.StatusNotFound, duration, nil)
}

func (s *Span) FinishError(errorType string, duration time.Duration) {
	s.finish(activitystore.StatusError, duration, map[string]string{AttrErrorType: errorType})
}

func (s *Span) finish(status string, duration time.Duration, attrs map[string]string) {
	if s.span == nil {
		return
	}

	s.span.SetStatus(status)
	s.span.AddAttribute(AttrDurationMS, fmt.Sprintf("%.2f", ToMilliseconds(duration)))

	for key, value := range attrs {
		s.span.AddAttribute(key, value)
	}

	s.collector.FinishSpan(s.span, status, attrs)
}

// === Metrics ===

// Recorder records the metrics of one operation.
type Recorder struct {
	collector activitystore.MetricsCollector
	ctx       context.Context
	operation string
}

func (o *Observer) StartMetrics(ctx context.Context, operation string) *Recorder {
	return &Recorder{collector: o.Metrics, ctx: ctx, operation: operation}
}

func (r *Recorder) RecordSuccess(activityCount int, duration time.Duration) {
	r.recordDuration(activitystore.StatusSuccess, duration)
	r.recordValue(MetricActivitiesRead, float64(activityCount), activitystore.StatusSuccess)
}

func (r *Recorder) RecordNotFound(duration time.Duration) {
	r.recordDuration(activitystore.StatusNotFound, duration)
	r.incrementCounter(MetricNotFound, r.labels(activitystore.StatusNotFound))
}

func (r *Recorder) RecordError(errorType string, duration time.Duration) {
	r.recordDuration(activitystore.StatusError, duration)

	labels := r.labels(activitystore.StatusError)
	labels[AttrErrorType] = errorType
	r.incrementCounter(MetricBackendErrors, labels)
}

func (r *Recorder) labels(status string) map[string]string {
	return map[string]string{
		AttrOperation: r.operation,
		LabelStatus:   status,
	}
}

// recordDuration uses the context-aware method if the collector supports it.
func (r *Recorder) recordDuration(status string, duration time.Duration) {
	if r.collector == nil {
		return
	}

	if contextual, ok := r.collector.(activitystore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(r.ctx, MetricOperationDuration, duration, r.labels(status))
		return
	}

	r.collector.RecordDuration(MetricOperationDuration, duration, r.labels(status))
}

func (r *Recorder) recordValue(metric string, value float64, status string) {
	if r.collector == nil {
		return
	}

	if contextual, ok := r.collector.(activitystore.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(r.ctx, metric, value, r.labels(status))
		return
	}

	r.collector.RecordValue(metric, value, r.labels(status))
}

func (r *Recorder) incrementCounter(metric string, labels map[string]string) {
	if r.collector == nil {
		return
	}

	if contextual, ok := r.collector.(activitystore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(r.ctx, metric, labels)
		return
	}

	r.collector.IncrementCounter(metric, labels)
}
