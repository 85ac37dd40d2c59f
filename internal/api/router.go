package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/api/handlers"
	"github.com/jobfill/jobfill/internal/api/middleware"
	"github.com/jobfill/jobfill/internal/autofill"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// HealthChecker is a dependency probed by /ready
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Health(ctx context.Context) error { return f(ctx) }

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	Service    *autofill.Service
	Dispatcher *autofill.Dispatcher
	Profiles   handlers.ProfileStore
	Mappings   handlers.MappingSource
	Metrics    *observability.Metrics
	Checks     map[string]HealthChecker
	Security   config.SecurityConfig
	RateLimits config.RateLimitConfig
	Timeout    time.Duration
	MaxBody    int64
	Logger     *zap.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Handler)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware)
	}
	r.Use(chimw.Timeout(cfg.Timeout))
	if cfg.MaxBody > 0 {
		r.Use(chimw.RequestSize(cfg.MaxBody))
	}

	if cfg.Security.CORSEnabled {
		origins := cfg.Security.CORSAllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.Security.APIKeyHeader, middleware.HeaderRequestID},
			ExposedHeaders:   []string{middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(middleware.NewRateLimitMiddleware(cfg.RateLimits).Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.ErrorFromDomain(w, domain.ErrNotFound("route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONError(w, http.StatusMethodNotAllowed, domain.ErrCodeValidation,
			r.Method+" is not allowed on "+r.URL.Path, nil)
	})

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.Checks))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	var trigger handlers.PageTrigger
	if cfg.Dispatcher != nil {
		trigger = cfg.Dispatcher
	}
	autofillHandler := handlers.NewAutofillHandler(cfg.Service, trigger, cfg.Logger)
	profileHandler := handlers.NewProfileHandler(cfg.Profiles, cfg.Logger)
	mappingHandler := handlers.NewMappingHandler(cfg.Mappings)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(cfg.Security).Handler)

		r.Route("/autofill", func(r chi.Router) {
			r.Post("/", autofillHandler.Autofill)
			r.Post("/html", autofillHandler.AutofillHTML)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Replace)
			r.Delete("/", profileHandler.Clear)
			r.Get("/export", profileHandler.Export)
			r.Post("/import", profileHandler.Import)
			r.Patch("/{field}", profileHandler.UpdateField)
		})

		r.Get("/mappings", mappingHandler.List)
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "jobfill-api",
	})
}

// readyHandler checks if all dependencies are ready
func readyHandler(checks map[string]HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]string, len(checks))
		allHealthy := true

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for _, name := range names {
			if err := checks[name].Health(ctx); err != nil {
				results[name] = "unhealthy: " + err.Error()
				allHealthy = false
				continue
			}
			results[name] = "healthy"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": results,
		})
	}
}
