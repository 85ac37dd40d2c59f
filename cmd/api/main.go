package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/api"
	"github.com/jobfill/jobfill/internal/app"
	"github.com/jobfill/jobfill/internal/autofill"
	"github.com/jobfill/jobfill/internal/browser"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/observability"
)

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := app.NewLogger(cfg.Env, cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting jobfill API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(cfg.App.Name, reg)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(startCtx, cfg, logger, metrics)
	cancelStart()
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	// Live browser (optional, the HTML endpoint works without it)
	var dispatcher *autofill.Dispatcher
	driver, err := browser.New(cfg.Browser, logger.Named("browser"))
	if err != nil {
		logger.Warn("Failed to start browser driver, live autofill disabled", zap.Error(err))
	} else {
		defer driver.Close()
		dispatcher = autofill.NewDispatcher(driver, a.Service,
			autofill.WithTimings(cfg.Browser),
			autofill.WithDispatcherLogger(logger.Named("dispatcher")),
			autofill.WithDispatcherMetrics(metrics),
		)
		logger.Info("Browser driver ready",
			zap.String("driver", cfg.Browser.Driver),
			zap.Bool("headless", cfg.Browser.Headless),
		)
	}

	checks := make(map[string]api.HealthChecker)
	for name, fn := range a.Checks() {
		checks[name] = api.HealthCheckFunc(fn)
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		Service:    a.Service,
		Dispatcher: dispatcher,
		Profiles:   a.Profiles,
		Mappings:   a.Mappings,
		Metrics:    metrics,
		Checks:     checks,
		Security:   cfg.Security,
		RateLimits: cfg.RateLimits,
		Timeout:    cfg.Server.WriteTimeout,
		MaxBody:    cfg.Server.MaxRequestSize,
		Logger:     logger,
	})

	// Create HTTP server
	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", addr), zap.Bool("tls", cfg.Security.TLSEnabled))
		if cfg.Security.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Security.TLSCertFile, cfg.Security.TLSKeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}
