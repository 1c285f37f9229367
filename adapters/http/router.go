package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/modforge/core/openapi"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	MetricsHandler http.Handler     // Optional metrics exporter handler
	MetricsPath    string           // Path for MetricsHandler (default: /metrics)
	Builds         ports.BuildStore // Optional build history, enables /builds
	Version        string           // Reported by /version (default: dev)
	Timeout        time.Duration    // Per-request timeout (default: 30s)
	APIBasePath    string           // Collection path prefix in the OpenAPI document
}

// NewRouter creates the preview HTTP router.
func NewRouter(reg *registry.Registry, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	health := NewHealthHandler(reg)
	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.MetricsHandler != nil {
		r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	}

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: cfg.Version, Service: "modforge"})
	})

	modules := NewModuleHandler(reg, logger)
	r.Route("/modules", func(r chi.Router) {
		r.Get("/", modules.ListModules)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", modules.GetModule)
			r.Get("/validation", modules.GetValidation)
			r.Get("/persistence", modules.GetPersistence)
			r.Post("/check", modules.Check)
		})
	})
	r.Get("/enums", modules.ListEnums)
	r.Get("/credential", modules.GetCredential)

	docs := NewOpenAPIHandler(openapi.NewService(openapi.ServiceConfig{
		Registry: reg,
		Info:     openapi.Info{Title: "Modules API", Version: cfg.Version},
		BasePath: cfg.APIBasePath,
		Logger:   logger,
	}))
	r.Get("/openapi.json", docs.JSON)
	r.Get("/openapi.yaml", docs.YAML)

	if cfg.Builds != nil {
		builds := NewBuildHandler(cfg.Builds)
		r.Get("/builds", builds.ListBuilds)
		r.Get("/builds/{id}", builds.GetBuild)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "route", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, Error{
			Code:   "method_not_allowed",
			Title:  "Method Not Allowed",
			Detail: r.Method + " is not allowed on " + r.URL.Path,
		})
	})

	return r
}

// NewLoggingMiddleware logs HTTP requests, skipping health checks and metrics scrapes.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
