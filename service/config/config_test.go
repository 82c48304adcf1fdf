package config_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/service/catalog"
	"github.com/mallorca-activities/activitystore-go/service/config"
	"github.com/mallorca-activities/activitystore-go/testutil/helper"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func Test_FromEnv_AppliesDefaults(t *testing.T) {
	// act
	cfg, err := config.FromEnv(lookupFrom(map[string]string{"DATABASE_URL": "postgres://localhost/activities"}))

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.BackendPostgres, cfg.Backend)
	assert.Equal(t, config.AdapterPGXPool, cfg.AdapterType)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, config.LogBackendSlog, cfg.LogBackend)
	assert.True(t, cfg.FallbackEnabled)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func Test_FromEnv_ReadsEveryVariable(t *testing.T) {
	// arrange
	env := map[string]string{
		"ACTIVITY_BACKEND":            "rest",
		"REST_URL":                    "https://project.example.com/rest/v1",
		"REST_API_KEY":                "anon-key",
		"LISTEN_ADDR":                 "127.0.0.1:9090",
		"LOG_LEVEL":                   "debug",
		"LOG_BACKEND":                 "zap",
		"OTEL_ENABLED":                "yes",
		"OTEL_EXPORTER":               "otlphttp",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4318",
		"OTEL_SAMPLER_RATIO":          "0.25",
		"JWT_SECRET":                  "s3cret",
		"FALLBACK_ENABLED":            "false",
		"CORS_ORIGINS":                "https://a.example, https://b.example,,",
		"TIMEZONE":                    "UTC",
		"SHUTDOWN_TIMEOUT":            "3s",
	}

	// act
	cfg, err := config.FromEnv(lookupFrom(env))

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.BackendREST, cfg.Backend)
	assert.Equal(t, "https://project.example.com/rest/v1", cfg.RESTURL)
	assert.Equal(t, "anon-key", cfg.RESTAPIKey)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, config.LogBackendZap, cfg.LogBackend)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, config.ExporterOTLPHTTP, cfg.OTel.Exporter)
	assert.Equal(t, "collector:4318", cfg.OTel.Endpoint)
	assert.InDelta(t, 0.25, cfg.OTel.SampleRatio, 1e-9)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.False(t, cfg.FallbackEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func Test_FromEnv_EnvironmentOverridesConfigFile(t *testing.T) {
	// arrange
	path := writeFile(t, "config.yaml", `
backend: gorm
databaseUrl: postgres://file/activities
listenAddr: ":7000"
corsOrigins: ["https://file.example"]
otel:
  enabled: true
  serviceName: from-file
`)

	// act
	cfg, err := config.FromEnv(lookupFrom(map[string]string{
		"CONFIG_FILE": path,
		"LISTEN_ADDR": ":9000",
	}))

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.BackendGorm, cfg.Backend)
	assert.Equal(t, "postgres://file/activities", cfg.DatabaseURL)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, []string{"https://file.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, "from-file", cfg.OTel.ServiceName)
	assert.Equal(t, config.ExporterStdout, cfg.OTel.Exporter, "defaults survive a partial file")
}

func Test_FromEnv_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres_without_database_url", env: map[string]string{}},
		{name: "rest_without_url", env: map[string]string{"ACTIVITY_BACKEND": "rest"}},
		{name: "unknown_backend", env: map[string]string{"ACTIVITY_BACKEND": "mongo", "DATABASE_URL": "x"}},
		{name: "unknown_adapter", env: map[string]string{"ADAPTER_TYPE": "pgx.conn", "DATABASE_URL": "x"}},
		{name: "unknown_log_backend", env: map[string]string{"LOG_BACKEND": "logrus", "DATABASE_URL": "x"}},
		{name: "unknown_exporter", env: map[string]string{"OTEL_ENABLED": "1", "OTEL_EXPORTER": "jaeger", "DATABASE_URL": "x"}},
		{name: "malformed_bool", env: map[string]string{"FALLBACK_ENABLED": "maybe", "DATABASE_URL": "x"}},
		{name: "sample_ratio_out_of_range", env: map[string]string{"OTEL_SAMPLER_RATIO": "2", "DATABASE_URL": "x"}},
		{name: "malformed_duration", env: map[string]string{"SHUTDOWN_TIMEOUT": "soon", "DATABASE_URL": "x"}},
		{name: "unknown_timezone", env: map[string]string{"TIMEZONE": "Mallorca/Palma", "DATABASE_URL": "x"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := config.FromEnv(lookupFrom(tc.env))

			// assert
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func Test_FromEnv_MissingConfigFileFails(t *testing.T) {
	// act
	_, err := config.FromEnv(lookupFrom(map[string]string{"CONFIG_FILE": filepath.Join(t.TempDir(), "absent.yaml")}))

	// assert
	assert.ErrorIs(t, err, config.ErrReadingConfigFileFailed)
}

func Test_FallbackTable(t *testing.T) {
	tests := []struct {
		name     string
		build    func(t *testing.T) config.Config
		validate func(t *testing.T, cfg config.Config)
	}{
		{
			name: "disabled",
			build: func(*testing.T) config.Config {
				cfg := config.Default()
				cfg.FallbackEnabled = false
				return cfg
			},
			validate: func(t *testing.T, cfg config.Config) {
				_, enabled, err := cfg.FallbackTable()
				require.NoError(t, err)
				assert.False(t, enabled)
			},
		},
		{
			name: "built_in_records",
			build: func(*testing.T) config.Config {
				return config.Default()
			},
			validate: func(t *testing.T, cfg config.Config) {
				table, enabled, err := cfg.FallbackTable()
				require.NoError(t, err)
				assert.True(t, enabled)
				_, found := table.Lookup("palma-cathedral-tour")
				assert.True(t, found)
			},
		},
		{
			name: "from_file",
			build: func(t *testing.T) config.Config {
				cfg := config.Default()
				cfg.FallbackFile = writeFile(t, "fallback.yaml", `
activities:
  - id: offline-1
    slug: cap-formentor-hike
    title: Cap de Formentor Hike
    category: land_adventures
    location: Pollença
    durationMinutes: 240
    status: active
    pricing:
      - priceType: adult
        basePrice: "35.00"
        currency: EUR
        isActive: true
`)
				return cfg
			},
			validate: func(t *testing.T, cfg config.Config) {
				table, enabled, err := cfg.FallbackTable()
				require.NoError(t, err)
				assert.True(t, enabled)
				assert.Equal(t, 1, table.Len())

				record, found := table.Lookup("offline-1")
				require.True(t, found)
				assert.Equal(t, "Cap de Formentor Hike", record.Title)
				price, ok := record.AdultPrice()
				assert.True(t, ok)
				assert.Equal(t, "35.00", price)
			},
		},
		{
			name: "file_with_duplicate_slugs",
			build: func(t *testing.T) config.Config {
				cfg := config.Default()
				cfg.FallbackFile = writeFile(t, "fallback.yaml", `
activities:
  - {id: a, slug: same}
  - {id: b, slug: same}
`)
				return cfg
			},
			validate: func(t *testing.T, cfg config.Config) {
				_, _, err := cfg.FallbackTable()
				assert.ErrorIs(t, err, config.ErrLoadingFallbackFileFailed)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.validate(t, tc.build(t))
		})
	}
}

func Test_PGXPoolConfig_AppliesPoolSizing(t *testing.T) {
	// act
	poolConfig, err := config.PGXPoolConfig("postgres://user:pw@localhost:5432/activities?sslmode=disable")

	// assert
	require.NoError(t, err)
	assert.Equal(t, int32(50), poolConfig.MaxConns)
	assert.Equal(t, int32(2), poolConfig.MinConns)
	assert.Equal(t, 5*time.Second, poolConfig.ConnConfig.ConnectTimeout)
}

func Test_PGXPoolConfig_RejectsMalformedDSN(t *testing.T) {
	// act
	_, err := config.PGXPoolConfig("postgres://user:pw@localhost:notaport/db")

	// assert
	assert.ErrorIs(t, err, config.ErrOpeningDatabaseFailed)
}

func Test_NewLogger_SelectsBackend(t *testing.T) {
	for _, backend := range []string{config.LogBackendSlog, config.LogBackendZap, config.LogBackendOTel} {
		t.Run(backend, func(t *testing.T) {
			// setup
			cfg := config.Default()
			cfg.LogBackend = backend
			var out bytes.Buffer

			// act
			logger, flush, err := cfg.NewLogger(&out)

			// assert
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.InfoContext(context.Background(), "configured")
			flush()
		})
	}
}

func Test_NewLogger_SlogHonoursLevel(t *testing.T) {
	// setup
	cfg := config.Default()
	cfg.LogLevel = "warn"
	var out bytes.Buffer

	// act
	logger, _, err := cfg.NewLogger(&out)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")

	// assert
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"shown"`)
}

func Test_NewTelemetry_DisabledIsNoop(t *testing.T) {
	// act
	telemetry, err := config.NewTelemetry(context.Background(), config.OTelConfig{})

	// assert
	require.NoError(t, err)
	assert.False(t, telemetry.Enabled())
	assert.Nil(t, telemetry.Tracing)
	assert.Nil(t, telemetry.Metrics)
	assert.NoError(t, telemetry.Shutdown(context.Background()))
}

func Test_NewTelemetry_EnabledWiresCollectors(t *testing.T) {
	// setup
	reader := sdkmetric.NewManualReader()
	cfg := config.Default().OTel
	cfg.Enabled = true

	// act
	telemetry, err := config.NewTelemetry(context.Background(), cfg, reader)

	// assert
	require.NoError(t, err)
	assert.True(t, telemetry.Enabled())
	require.NotNil(t, telemetry.Tracing)
	require.NotNil(t, telemetry.Metrics)

	telemetry.Metrics.IncrementCounter("catalog_operation_failures_total", map[string]string{"operation": "list_activities"})
	assert.NoError(t, telemetry.Shutdown(context.Background()))
}

func Test_CatalogOptions_HonourFallbackSwitch(t *testing.T) {
	tests := []struct {
		name         string
		enabled      bool
		expectedCode activitystore.ResultCode
	}{
		{name: "enabled", enabled: true, expectedCode: activitystore.CodeFallback},
		{name: "disabled", enabled: false, expectedCode: activitystore.CodeBackendError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			cfg := config.Default()
			cfg.FallbackEnabled = tc.enabled
			logger, _, err := cfg.NewLogger(io.Discard)
			require.NoError(t, err)

			store := helper.NewStoreStub()
			store.LookupErr = errors.New("connection refused")

			// arrange
			options, err := cfg.CatalogOptions(logger)
			require.NoError(t, err)
			service, err := catalog.NewService(store, options...)
			require.NoError(t, err)

			// act
			result := service.GetActivityByIDOrSlug(context.Background(), "sailing-adventure")

			// assert
			assert.Equal(t, tc.expectedCode, result.Code)
		})
	}
}
