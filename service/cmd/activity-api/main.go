// Command activity-api serves the activity catalog over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mallorca-activities/activitystore-go/service/catalog"
	"github.com/mallorca-activities/activitystore-go/service/config"
	"github.com/mallorca-activities/activitystore-go/service/httpapi"
)

const readHeaderTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("activity-api failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, flush, err := cfg.NewLogger(os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := config.NewTelemetry(ctx, cfg.OTel)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if shutdownErr := telemetry.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	store, closeStore, err := cfg.OpenStore(ctx, logger, telemetry)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}
	defer closeStore()

	catalogOptions, err := cfg.CatalogOptions(logger)
	if err != nil {
		return err
	}

	service, err := catalog.NewService(store, catalogOptions...)
	if err != nil {
		return err
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := httpapi.NewRouter(
		catalog.Observe(service, telemetry.Observability(logger)),
		httpapi.WithJWTSecret(cfg.JWTSecret),
		httpapi.WithCORSOrigins(cfg.CORSOrigins...),
		httpapi.WithTracerProvider(telemetry.TracerProvider),
		httpapi.WithServiceName(cfg.OTel.ServiceName),
		httpapi.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("activity-api listening", "addr", cfg.ListenAddr, "backend", cfg.Backend)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil

	case <-ctx.Done():
		logger.Info("shutting down activity-api")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
