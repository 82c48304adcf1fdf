package config

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/mallorca-activities/activitystore-go/activitystore/oteladapters"
)

const (
	instrumentationName = "github.com/mallorca-activities/activitystore-go"
	batchTimeout        = 5 * time.Second
)

var ErrSettingUpTelemetryFailed = errors.New("setting up telemetry failed")

// Telemetry holds the providers and the adapters built on them.
// With OTel disabled the providers are no-ops and the collectors are nil, so nothing is recorded.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracing        *oteladapters.TracingCollector
	Metrics        *oteladapters.MetricsCollector
	shutdown       []func(context.Context) error
}

// NewTelemetry creates the tracer and meter providers and installs them globally.
// Metric readers are supplied by the caller, e.g. a periodic reader on an exporter or a manual reader in tests.
func NewTelemetry(ctx context.Context, cfg OTelConfig, readers ...sdkmetric.Reader) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
		attribute.String("service.component", "activitystore"),
	))
	if err != nil {
		// a schema conflict with the default resource must not keep the service down
		res = resource.Default()
	}

	exporter, err := traceExporter(ctx, cfg)
	if err != nil {
		return nil, errors.Join(ErrSettingUpTelemetryFailed, err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)

	meterOptions := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		meterOptions = append(meterOptions, sdkmetric.WithReader(reader))
	}

	meterProvider := sdkmetric.NewMeterProvider(meterOptions...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracing:        oteladapters.NewTracingCollector(tracerProvider.Tracer(instrumentationName)),
		Metrics:        oteladapters.NewMetricsCollector(meterProvider.Meter(instrumentationName)),
		shutdown:       []func(context.Context) error{tracerProvider.Shutdown, meterProvider.Shutdown},
	}, nil
}

// Enabled reports whether spans and metrics are recorded.
func (t *Telemetry) Enabled() bool {
	return len(t.shutdown) > 0
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range t.shutdown {
		errs = append(errs, shutdown(ctx))
	}

	return errors.Join(errs...)
}

func traceExporter(ctx context.Context, cfg OTelConfig) (sdktrace.SpanExporter, error) {
	if cfg.Exporter != ExporterOTLPHTTP {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}

	options := make([]otlptracehttp.Option, 0, 2)
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		options = append(options, otlptracehttp.WithEndpoint(endpoint))
	}

	if cfg.Insecure {
		options = append(options, otlptracehttp.WithInsecure())
	}

	return otlptracehttp.New(ctx, options...)
}
