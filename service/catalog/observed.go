package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	MetricOperationDuration = "catalog_operation_duration_seconds"
	MetricOperationFailures = "catalog_operation_failures_total"
	MetricFallbackServed    = "catalog_fallback_served_total"
	SpanNamePrefix          = "catalog."
	logMsgOperationStarted  = "catalog operation started"
	logMsgOperationDone     = "catalog operation completed"
	logMsgOperationFailed   = "catalog operation failed"
	attrCode                = "code"
	attrActivityCount       = "activity_count"
	attrDurationMS          = "duration_ms"
	attrMessage             = "message"
)

// Observability bundles the optional collectors of the Observed decorator.
type Observability struct {
	Logger           activitystore.Logger
	ContextualLogger activitystore.ContextualLogger
	Metrics          activitystore.MetricsCollector
	Tracing          activitystore.TracingCollector
}

// Observed decorates a Catalog with a span, a duration histogram, failure and fallback counters,
// and start and completion logs per operation. Labels are the operation name and the result code.
type Observed struct {
	next Catalog
	obs  Observability
}

func Observe(next Catalog, obs Observability) *Observed {
	return &Observed{next: next, obs: obs}
}

func (o *Observed) ListActivities(
	ctx context.Context,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	return observe(ctx, o, operationList, func(ctx context.Context) activitystore.Result[[]activitystore.ActivityWithDetails] {
		return o.next.ListActivities(ctx, params)
	})
}

func (o *Observed) GetFeaturedActivities(ctx context.Context, limit int) activitystore.Result[[]activitystore.ActivityWithDetails] {
	return observe(ctx, o, operationFeatured, func(ctx context.Context) activitystore.Result[[]activitystore.ActivityWithDetails] {
		return o.next.GetFeaturedActivities(ctx, limit)
	})
}

func (o *Observed) SearchActivities(
	ctx context.Context,
	term string,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	return observe(ctx, o, operationSearch, func(ctx context.Context) activitystore.Result[[]activitystore.ActivityWithDetails] {
		return o.next.SearchActivities(ctx, term, params)
	})
}

func (o *Observed) GetActivitiesByCategory(
	ctx context.Context,
	category string,
	limit int,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	return observe(ctx, o, operationByCategory, func(ctx context.Context) activitystore.Result[[]activitystore.ActivityWithDetails] {
		return o.next.GetActivitiesByCategory(ctx, category, limit)
	})
}

func (o *Observed) GetActivityByIDOrSlug(ctx context.Context, identifier string) activitystore.Result[activitystore.ActivityWithDetails] {
	return observe(ctx, o, operationByIDOrSlug, func(ctx context.Context) activitystore.Result[activitystore.ActivityWithDetails] {
		return o.next.GetActivityByIDOrSlug(ctx, identifier)
	})
}

func (o *Observed) GetSimilarActivities(
	ctx context.Context,
	activityID string,
	limit int,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	return observe(ctx, o, operationSimilar, func(ctx context.Context) activitystore.Result[[]activitystore.ActivityWithDetails] {
		return o.next.GetSimilarActivities(ctx, activityID, limit)
	})
}

func (o *Observed) GetActivitiesForAdmin(
	ctx context.Context,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	return observe(ctx, o, operationAdminList, func(ctx context.Context) activitystore.Result[[]activitystore.ActivityWithDetails] {
		return o.next.GetActivitiesForAdmin(ctx, params)
	})
}

func (o *Observed) GetActivityByIDForAdmin(ctx context.Context, id string) activitystore.Result[activitystore.ActivityWithDetails] {
	return observe(ctx, o, operationAdminByID, func(ctx context.Context) activitystore.Result[activitystore.ActivityWithDetails] {
		return o.next.GetActivityByIDForAdmin(ctx, id)
	})
}

func (o *Observed) GetActivitiesStats(ctx context.Context) activitystore.Result[activitystore.StatusCounts] {
	return observe(ctx, o, operationStats, func(ctx context.Context) activitystore.Result[activitystore.StatusCounts] {
		return o.next.GetActivitiesStats(ctx)
	})
}

func (o *Observed) CreateActivity(ctx context.Context, input activitystore.NewActivity) activitystore.Result[activitystore.Activity] {
	return observe(ctx, o, operationCreate, func(ctx context.Context) activitystore.Result[activitystore.Activity] {
		return o.next.CreateActivity(ctx, input)
	})
}

func (o *Observed) UpdateActivity(
	ctx context.Context,
	id string,
	update activitystore.ActivityUpdate,
) activitystore.Result[activitystore.Activity] {

	return observe(ctx, o, operationUpdate, func(ctx context.Context) activitystore.Result[activitystore.Activity] {
		return o.next.UpdateActivity(ctx, id, update)
	})
}

func (o *Observed) DeleteActivity(ctx context.Context, id string) activitystore.Result[string] {
	return observe(ctx, o, operationDelete, func(ctx context.Context) activitystore.Result[string] {
		return o.next.DeleteActivity(ctx, id)
	})
}

func (o *Observed) AddActivityImage(
	ctx context.Context,
	input activitystore.NewActivityImage,
) activitystore.Result[activitystore.ActivityImage] {

	return observe(ctx, o, operationAddImage, func(ctx context.Context) activitystore.Result[activitystore.ActivityImage] {
		return o.next.AddActivityImage(ctx, input)
	})
}

var _ Catalog = (*Observed)(nil)

/***** instrumentation *****/

func observe[T any](
	ctx context.Context,
	o *Observed,
	operation string,
	call func(context.Context) activitystore.Result[T],
) activitystore.Result[T] {

	start := time.Now()
	o.debug(ctx, logMsgOperationStarted, logAttrOperation, operation)

	spanCtx, span := o.startSpan(ctx, operation)
	result := call(spanCtx)
	duration := time.Since(start)

	count := countOf(result.Data)
	status := spanStatus(ctx, result.Code)
	labels := map[string]string{logAttrOperation: operation, attrCode: string(result.Code)}

	o.recordDuration(spanCtx, duration, labels)

	if result.IsFallback() {
		o.incrementCounter(spanCtx, MetricFallbackServed, labels)
	}

	if !result.IsSuccess {
		o.incrementCounter(spanCtx, MetricOperationFailures, labels)
	}

	if span != nil {
		o.obs.Tracing.FinishSpan(span, status, map[string]string{
			attrCode:          string(result.Code),
			attrActivityCount: strconv.Itoa(count),
			attrDurationMS:    strconv.FormatFloat(toMilliseconds(duration), 'f', 3, 64),
		})
	}

	args := []any{
		logAttrOperation, operation,
		attrCode, string(result.Code),
		attrActivityCount, count,
		attrDurationMS, toMilliseconds(duration),
	}

	if result.IsSuccess {
		o.info(spanCtx, logMsgOperationDone, args...)
	} else {
		o.warn(spanCtx, logMsgOperationFailed, append(args, attrMessage, result.Message)...)
	}

	return result
}

func (o *Observed) startSpan(ctx context.Context, operation string) (context.Context, activitystore.SpanContext) {
	if o.obs.Tracing == nil {
		return ctx, nil
	}

	return o.obs.Tracing.StartSpan(ctx, SpanNamePrefix+operation, map[string]string{logAttrOperation: operation})
}

// spanStatus reports caller cancellation separately from backend failures.
func spanStatus(ctx context.Context, code activitystore.ResultCode) string {
	switch {
	case code == activitystore.CodeOK || code == activitystore.CodeFallback:
		return activitystore.StatusSuccess
	case code == activitystore.CodeNotFound:
		return activitystore.StatusNotFound
	case errors.Is(ctx.Err(), context.Canceled):
		return activitystore.StatusCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return activitystore.StatusTimeout
	default:
		return activitystore.StatusError
	}
}

func countOf(data any) int {
	switch v := data.(type) {
	case *[]activitystore.ActivityWithDetails:
		if v == nil {
			return 0
		}

		return len(*v)
	case *activitystore.ActivityWithDetails:
		if v == nil {
			return 0
		}

		return 1
	case *activitystore.Activity:
		if v == nil {
			return 0
		}

		return 1
	default:
		return 0
	}
}

func (o *Observed) recordDuration(ctx context.Context, duration time.Duration, labels map[string]string) {
	if o.obs.Metrics == nil {
		return
	}

	if contextual, ok := o.obs.Metrics.(activitystore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, MetricOperationDuration, duration, labels)
		return
	}

	o.obs.Metrics.RecordDuration(MetricOperationDuration, duration, labels)
}

func (o *Observed) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.obs.Metrics == nil {
		return
	}

	if contextual, ok := o.obs.Metrics.(activitystore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.obs.Metrics.IncrementCounter(metric, labels)
}

func (o *Observed) debug(ctx context.Context, msg string, args ...any) {
	switch {
	case o.obs.ContextualLogger != nil:
		o.obs.ContextualLogger.DebugContext(ctx, msg, args...)
	case o.obs.Logger != nil:
		o.obs.Logger.Debug(msg, args...)
	}
}

func (o *Observed) info(ctx context.Context, msg string, args ...any) {
	switch {
	case o.obs.ContextualLogger != nil:
		o.obs.ContextualLogger.InfoContext(ctx, msg, args...)
	case o.obs.Logger != nil:
		o.obs.Logger.Info(msg, args...)
	}
}

func (o *Observed) warn(ctx context.Context, msg string, args ...any) {
	switch {
	case o.obs.ContextualLogger != nil:
		o.obs.ContextualLogger.WarnContext(ctx, msg, args...)
	case o.obs.Logger != nil:
		o.obs.Logger.Warn(msg, args...)
	}
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
