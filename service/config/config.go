package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backends.
const (
	BackendPostgres = "postgres"
	BackendGorm     = "gorm"
	BackendREST     = "rest"
)

// Adapter types for the postgres backend.
const (
	AdapterPGXPool = "pgx.pool"
	AdapterSQLDB   = "sql.db"
	AdapterSQLX    = "sqlx.db"
)

// Log backends.
const (
	LogBackendSlog = "slog"
	LogBackendZap  = "zap"
	LogBackendOTel = "otel"
)

// Trace exporters.
const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlphttp"
)

const (
	envConfigFile       = "CONFIG_FILE"
	envBackend          = "ACTIVITY_BACKEND"
	envAdapterType      = "ADAPTER_TYPE"
	envDatabaseURL      = "DATABASE_URL"
	envReplicaURL       = "DATABASE_REPLICA_URL"
	envDatabaseSchema   = "DATABASE_SCHEMA"
	envRESTURL          = "REST_URL"
	envRESTAPIKey       = "REST_API_KEY"
	envListenAddr       = "LISTEN_ADDR"
	envLogLevel         = "LOG_LEVEL"
	envLogBackend       = "LOG_BACKEND"
	envLogMode          = "LOG_MODE"
	envOTelEnabled      = "OTEL_ENABLED"
	envOTelExporter     = "OTEL_EXPORTER"
	envOTelEndpoint     = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTelInsecure     = "OTEL_EXPORTER_OTLP_INSECURE"
	envOTelSampleRatio  = "OTEL_SAMPLER_RATIO"
	envServiceName      = "OTEL_SERVICE_NAME"
	envJWTSecret        = "JWT_SECRET"
	envFallbackEnabled  = "FALLBACK_ENABLED"
	envFallbackFile     = "FALLBACK_FILE"
	envCORSOrigins      = "CORS_ORIGINS"
	envTimezone         = "TIMEZONE"
	envShutdownTimeout  = "SHUTDOWN_TIMEOUT"
	defaultListenAddr   = ":8080"
	defaultLogLevel     = "info"
	defaultTimezone     = "Europe/Madrid"
	defaultServiceName  = "activity-api"
	defaultSampleRatio  = 1.0
	defaultShutdownWait = 10 * time.Second
)

var (
	ErrReadingConfigFileFailed = errors.New("reading config file failed")
	ErrInvalidConfig           = errors.New("invalid config")
)

// Config is the complete runtime configuration. The yaml tags define the CONFIG_FILE format.
type Config struct {
	Backend         string        `yaml:"backend"`
	AdapterType     string        `yaml:"adapterType"`
	DatabaseURL     string        `yaml:"databaseUrl"`
	ReplicaURL      string        `yaml:"replicaUrl"`
	DatabaseSchema  string        `yaml:"databaseSchema"`
	RESTURL         string        `yaml:"restUrl"`
	RESTAPIKey      string        `yaml:"restApiKey"`
	ListenAddr      string        `yaml:"listenAddr"`
	LogLevel        string        `yaml:"logLevel"`
	LogBackend      string        `yaml:"logBackend"`
	LogMode         string        `yaml:"logMode"`
	JWTSecret       string        `yaml:"jwtSecret"`
	FallbackEnabled bool          `yaml:"fallbackEnabled"`
	FallbackFile    string        `yaml:"fallbackFile"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	Timezone        string        `yaml:"timezone"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	OTel            OTelConfig    `yaml:"otel"`
}

type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio"`
	ServiceName string  `yaml:"serviceName"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:         BackendPostgres,
		AdapterType:     AdapterPGXPool,
		ListenAddr:      defaultListenAddr,
		LogLevel:        defaultLogLevel,
		LogBackend:      LogBackendSlog,
		FallbackEnabled: true,
		Timezone:        defaultTimezone,
		ShutdownTimeout: defaultShutdownWait,
		OTel: OTelConfig{
			Exporter:    ExporterStdout,
			SampleRatio: defaultSampleRatio,
			ServiceName: defaultServiceName,
		},
	}
}

// Load reads .env files (missing files are fine), the YAML file named by CONFIG_FILE and the environment.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from a lookup function, e.g. os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookupTrimmed(lookup, envConfigFile); ok {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.overlayEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingConfigFileFailed, err)
	}

	if err = yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Join(ErrReadingConfigFileFailed, err)
	}

	return nil
}

//nolint:gocyclo
func (cfg *Config) overlayEnv(lookup func(string) (string, bool)) error {
	texts := map[string]*string{
		envBackend:        &cfg.Backend,
		envAdapterType:    &cfg.AdapterType,
		envDatabaseURL:    &cfg.DatabaseURL,
		envReplicaURL:     &cfg.ReplicaURL,
		envDatabaseSchema: &cfg.DatabaseSchema,
		envRESTURL:        &cfg.RESTURL,
		envRESTAPIKey:     &cfg.RESTAPIKey,
		envListenAddr:     &cfg.ListenAddr,
		envLogLevel:       &cfg.LogLevel,
		envLogBackend:     &cfg.LogBackend,
		envLogMode:        &cfg.LogMode,
		envJWTSecret:      &cfg.JWTSecret,
		envFallbackFile:   &cfg.FallbackFile,
		envTimezone:       &cfg.Timezone,
		envOTelExporter:   &cfg.OTel.Exporter,
		envOTelEndpoint:   &cfg.OTel.Endpoint,
		envServiceName:    &cfg.OTel.ServiceName,
	}

	for key, target := range texts {
		if value, ok := lookupTrimmed(lookup, key); ok {
			*target = value
		}
	}

	flags := map[string]*bool{
		envFallbackEnabled: &cfg.FallbackEnabled,
		envOTelEnabled:     &cfg.OTel.Enabled,
		envOTelInsecure:    &cfg.OTel.Insecure,
	}

	for key, target := range flags {
		value, ok := lookupTrimmed(lookup, key)
		if !ok {
			continue
		}

		parsed, err := parseBool(value)
		if err != nil {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("%s: %w", key, err))
		}

		*target = parsed
	}

	if value, ok := lookupTrimmed(lookup, envCORSOrigins); ok {
		cfg.CORSOrigins = splitList(value)
	}

	if value, ok := lookupTrimmed(lookup, envOTelSampleRatio); ok {
		ratio, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("%s: %w", envOTelSampleRatio, err))
		}

		cfg.OTel.SampleRatio = ratio
	}

	if value, ok := lookupTrimmed(lookup, envShutdownTimeout); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("%s: %w", envShutdownTimeout, err))
		}

		cfg.ShutdownTimeout = timeout
	}

	return nil
}

// Validate checks the enumerations and that the selected backend has its connection settings.
func (cfg Config) Validate() error {
	var problems []error

	switch cfg.Backend {
	case BackendPostgres, BackendGorm:
		if cfg.DatabaseURL == "" {
			problems = append(problems, fmt.Errorf("%s is required for backend %q", envDatabaseURL, cfg.Backend))
		}
	case BackendREST:
		if cfg.RESTURL == "" {
			problems = append(problems, fmt.Errorf("%s is required for backend %q", envRESTURL, cfg.Backend))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown backend %q", cfg.Backend))
	}

	if cfg.Backend == BackendPostgres && !oneOf(cfg.AdapterType, AdapterPGXPool, AdapterSQLDB, AdapterSQLX) {
		problems = append(problems, fmt.Errorf("unknown adapter type %q", cfg.AdapterType))
	}

	if !oneOf(cfg.LogBackend, LogBackendSlog, LogBackendZap, LogBackendOTel) {
		problems = append(problems, fmt.Errorf("unknown log backend %q", cfg.LogBackend))
	}

	if cfg.OTel.Enabled && !oneOf(cfg.OTel.Exporter, ExporterStdout, ExporterOTLPHTTP) {
		problems = append(problems, fmt.Errorf("unknown otel exporter %q", cfg.OTel.Exporter))
	}

	if cfg.OTel.SampleRatio < 0 || cfg.OTel.SampleRatio > 1 {
		problems = append(problems, fmt.Errorf("otel sample ratio %v is outside [0, 1]", cfg.OTel.SampleRatio))
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("timezone %q: %w", cfg.Timezone, err))
	}

	if len(problems) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, problems...)...)
	}

	return nil
}

// Location returns the configured time zone; Validate guarantees it loads.
func (cfg Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	value, ok := lookup(key)
	if !ok {
		return "", false
	}

	value = strings.TrimSpace(value)

	return value, value != ""
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))

	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}

	return list
}

func oneOf(value string, allowed ...string) bool {
	return slices.Contains(allowed, value)
}
