// Package httpapi exposes the catalog over HTTP with gin.
//
// Every response body is an activitystore.Result envelope. The HTTP status follows the envelope code:
// ok and fallback map to 200, not_found to 404, invalid_input to 400 and backend_error to 503.
// Routes under /api/admin require an HS256 bearer token whose role claim is "admin".
package httpapi

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/service/catalog"
)

const (
	defaultServiceName = "activity-api"
	logMsgRequest      = "http request served"
	logMsgPanic        = "http handler panicked"
	logAttrMethod      = "method"
	logAttrRoute       = "route"
	logAttrStatus      = "status"
	logAttrDurationMS  = "duration_ms"
	logAttrClientIP    = "client_ip"
)

var ErrNilCatalog = errors.New("catalog must not be nil")

var registerBindingOnce sync.Once

type router struct {
	catalog        catalog.Catalog
	jwtSecret      []byte
	corsOrigins    []string
	serviceName    string
	tracerProvider trace.TracerProvider
	logger         activitystore.ContextualLogger
}

// Option defines a functional option for configuring the router.
type Option func(*router) error

// WithJWTSecret enables the admin routes; without a secret they always answer 401.
func WithJWTSecret(secret string) Option {
	return func(r *router) error {
		r.jwtSecret = []byte(secret)
		return nil
	}
}

// WithCORSOrigins sets the allowed browser origins. Without origins no CORS headers are sent.
func WithCORSOrigins(origins ...string) Option {
	return func(r *router) error {
		r.corsOrigins = append(r.corsOrigins, origins...)
		return nil
	}
}

// WithTracerProvider sets the provider of the server spans; the global provider is used otherwise.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(r *router) error {
		r.tracerProvider = provider
		return nil
	}
}

func WithServiceName(name string) Option {
	return func(r *router) error {
		if name != "" {
			r.serviceName = name
		}

		return nil
	}
}

func WithLogger(logger activitystore.ContextualLogger) Option {
	return func(r *router) error {
		r.logger = logger
		return nil
	}
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(cat catalog.Catalog, options ...Option) (*gin.Engine, error) {
	if cat == nil {
		return nil, ErrNilCatalog
	}

	r := &router{catalog: cat, serviceName: defaultServiceName}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	var bindingErr error
	registerBindingOnce.Do(func() {
		if validate, ok := binding.Validator.Engine().(*validator.Validate); ok {
			bindingErr = catalog.RegisterValidations(validate)
		}
	})

	if bindingErr != nil {
		return nil, bindingErr
	}

	engine := gin.New()
	engine.Use(r.recovery(), r.requestLog())

	otelOptions := make([]otelgin.Option, 0, 1)
	if r.tracerProvider != nil {
		otelOptions = append(otelOptions, otelgin.WithTracerProvider(r.tracerProvider))
	}

	engine.Use(otelgin.Middleware(r.serviceName, otelOptions...))

	if len(r.corsOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     r.corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	{
		activities := api.Group("/activities")
		activities.GET("", r.listActivities)
		activities.GET("/featured", r.featuredActivities)
		activities.GET("/search", r.searchActivities)
		activities.GET("/category/:category", r.activitiesByCategory)
		activities.GET("/:identifier", r.activityByIDOrSlug)
		activities.GET("/:identifier/similar", r.similarActivities)
	}

	admin := api.Group("/admin", r.requireAdmin())
	{
		admin.GET("/activities", r.adminListActivities)
		admin.GET("/activities/stats", r.activitiesStats)
		admin.GET("/activities/:id", r.adminActivityByID)
		admin.POST("/activities", r.createActivity)
		admin.PATCH("/activities/:id", r.updateActivity)
		admin.DELETE("/activities/:id", r.deleteActivity)
		admin.POST("/activities/:id/images", r.addActivityImage)
	}

	return engine, nil
}

func (r *router) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if r.logger == nil {
			return
		}

		r.logger.InfoContext(c.Request.Context(), logMsgRequest,
			logAttrMethod, c.Request.Method,
			logAttrRoute, c.FullPath(),
			logAttrStatus, c.Writer.Status(),
			logAttrDurationMS, float64(time.Since(start).Microseconds())/1000,
			logAttrClientIP, c.ClientIP(),
		)
	}
}

// recovery answers a panicking handler with a backend_error envelope instead of a bare 500.
func (r *router) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if r.logger != nil {
			r.logger.ErrorContext(c.Request.Context(), logMsgPanic, logAttrRoute, c.FullPath(), "panic", recovered)
		}

		respond(c, activitystore.Failure[struct{}](activitystore.CodeBackendError, "Internal server error"))
	})
}
