package restengine

import (
	"net/http"
	"time"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithAPIKey sets the project key sent as "apikey" header.
// Unless WithBearerToken is used as well, the key is also sent as bearer token.
func WithAPIKey(key string) Option {
	return func(s *Store) error {
		s.apiKey = key
		return nil
	}
}

// WithBearerToken sets the token of the Authorization header, e.g. a service role token.
func WithBearerToken(token string) Option {
	return func(s *Store) error {
		s.bearerToken = token
		return nil
	}
}

// WithHTTPClient replaces the default client, which is instrumented with otelhttp.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) error {
		if client != nil {
			s.client = client
		}

		return nil
	}
}

// WithListingView sets the view that exposes the adult price as column, "activity_listing" by default.
// Queries that filter or order by the adult price read it instead of the activities table.
func WithListingView(name string) Option {
	return func(s *Store) error {
		if name == "" {
			return activitystore.ErrEmptyTableNameSupplied
		}

		s.listingView = name

		return nil
	}
}

// WithLogger sets the logger; requests go to debug level, completed operations to info level.
func WithLogger(logger activitystore.Logger) Option {
	return func(s *Store) error {
		s.obs.Logger = logger
		return nil
	}
}

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
