package gormengine

import (
	"time"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithSchema qualifies every table with the given schema.
func WithSchema(schema string) Option {
	return func(s *Store) error {
		if schema == "" {
			return activitystore.ErrEmptyTableNameSupplied
		}

		s.tables = qualifiedTables(schema)

		return nil
	}
}

// WithLogger sets the logger; SQL statements go to debug level, completed operations to info level.
func WithLogger(logger activitystore.Logger) Option {
	return func(s *Store) error {
		s.obs.Logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger; it takes precedence over WithLogger.
func WithContextualLogger(logger activitystore.ContextualLogger) Option {
	return func(s *Store) error {
		s.obs.ContextualLogger = logger
		return nil
	}
}

func WithMetrics(collector activitystore.MetricsCollector) Option {
	return func(s *Store) error {
		s.obs.Metrics = collector
		return nil
	}
}

func WithTracing(collector activitystore.TracingCollector) Option {
	return func(s *Store) error {
		s.obs.Tracing = collector
		return nil
	}
}

// WithClock replaces time.Now for "today" and for the timestamps of writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		if now != nil {
			s.now = now
		}

		return nil
	}
}

// WithLocation sets the time zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) error {
		if loc != nil {
			s.location = loc
		}

		return nil
	}
}
