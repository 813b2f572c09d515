package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicops/visitdesk/internal/api/router"
	"github.com/clinicops/visitdesk/internal/app/bootstrap"
	"github.com/clinicops/visitdesk/internal/auth"
	appconfig "github.com/clinicops/visitdesk/internal/config"
	"github.com/clinicops/visitdesk/internal/observability/metrics"
	"github.com/clinicops/visitdesk/internal/reporting"
	"github.com/clinicops/visitdesk/internal/visits"
	"github.com/clinicops/visitdesk/pkg/logging"
)

func main() {
	// Load .env in development; ignore absence
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting visitdesk API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	// Persistence
	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Services and handlers
	visitMetrics := metrics.NewVisitMetrics(nil)

	authSvc := auth.NewService(stores.Users, cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost, logger)
	authHandler := auth.NewHandler(authSvc, cfg.Env == "production", cfg.TokenTTL, logger)

	visitSvc := visits.NewService(stores.Visits, stores.Users, visitMetrics, logger)
	visitsHandler := visits.NewHandler(visitSvc, logger)

	statsSvc := reporting.NewService(stores.Reporting, redisClient, cfg.DashboardCacheTTL, logger)
	dashboardHandler := reporting.NewHandler(statsSvc, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		AuthService:        authSvc,
		AuthHandler:        authHandler,
		VisitsHandler:      visitsHandler,
		DashboardHandler:   dashboardHandler,
		UserRepo:           stores.Users,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthRateRPS:        cfg.AuthRateRPS,
		AuthRateBurst:      cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
