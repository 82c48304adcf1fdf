package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/mallorca-activities/activitystore-go/activitystore/oteladapters"
)

func givenMetricsCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	collector.RecordDuration("activitystore_operation_duration_seconds", 150*time.Millisecond, map[string]string{
		"operation": "query_activities",
		"status":    "success",
	})

	// assert
	histogram := findHistogramMetric(t, collect(t, reader), "activitystore_operation_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "query_activities"),
		attribute.String("status", "success"),
	)
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()
	labels := map[string]string{"operation": "activity_by_slug"}

	// act
	collector.IncrementCounter("activitystore_not_found_total", labels)
	collector.IncrementCounter("activitystore_not_found_total", labels)
	collector.IncrementCounterContext(context.Background(), "activitystore_not_found_total", labels)

	// assert
	counter := findCounterMetric(t, collect(t, reader), "activitystore_not_found_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(3), counter.DataPoints[0].Value)
	assert.True(t, counter.IsMonotonic)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	collector.RecordValue("activitystore_activities_read", 12, map[string]string{"operation": "query_activities"})
	collector.RecordValueContext(context.Background(), "activitystore_activities_read", 7, map[string]string{"operation": "query_activities"})

	// assert
	gauge := findGaugeMetric(t, collect(t, reader), "activitystore_activities_read")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 7.0, gauge.DataPoints[0].Value, 0.0001, "gauge keeps the last value")
}

func Test_MetricsCollector_SeparatesLabelSets(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	collector.RecordDurationContext(context.Background(), "catalog_operation_duration_seconds", time.Second, map[string]string{"status": "success"})
	collector.RecordDurationContext(context.Background(), "catalog_operation_duration_seconds", time.Second, map[string]string{"status": "error"})

	// assert
	histogram := findHistogramMetric(t, collect(t, reader), "catalog_operation_duration_seconds")
	assert.Len(t, histogram.DataPoints, 2)
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("activitystore_backend_errors_total", nil)
			collector.RecordDuration("activitystore_operation_duration_seconds", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	// assert
	counter := findCounterMetric(t, collect(t, reader), "activitystore_backend_errors_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(20), counter.DataPoints[0].Value)
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Histogram[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
				return &h
			}
		}
	}
	t.Fatalf("histogram %s not found", name)
	return nil
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Sum[int64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if c, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				return &c
			}
		}
	}
	t.Fatalf("counter %s not found", name)
	return nil
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Gauge[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if g, ok := m.Data.(metricdata.Gauge[float64]); ok && m.Name == name {
				return &g
			}
		}
	}
	t.Fatalf("gauge %s not found", name)
	return nil
}
