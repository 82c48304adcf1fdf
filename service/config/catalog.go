package config

import (
	"github.com/mallorca-activities/activitystore-go/service/catalog"
)

// CatalogOptions configures the fallback table and the logger of the catalog service.
func (cfg Config) CatalogOptions(logger Logger) ([]catalog.Option, error) {
	table, enabled, err := cfg.FallbackTable()
	if err != nil {
		return nil, err
	}

	options := []catalog.Option{catalog.WithContextualLogger(logger)}
	if !enabled {
		return append(options, catalog.WithoutFallback()), nil
	}

	return append(options, catalog.WithFallbackTable(table)), nil
}

// Observability returns the decorator settings; collectors are left nil when telemetry is disabled.
func (t *Telemetry) Observability(logger Logger) catalog.Observability {
	obs := catalog.Observability{ContextualLogger: logger}
	if t == nil || !t.Enabled() {
		return obs
	}

	obs.Metrics = t.Metrics
	obs.Tracing = t.Tracing

	return obs
}
