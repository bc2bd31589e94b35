// Package httpapi assembles the public HTTP surface: the middleware chain,
// the ingest and reconcile routes, health and Prometheus metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sitecarbon/internal/platform/metrics"
	"sitecarbon/internal/platform/middleware"
	"sitecarbon/pkg/platform/circuit"
	"sitecarbon/pkg/platform/httputil"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// BreakerReporter exposes invalidation breaker state. *revalidate.Fanout
// implements it.
type BreakerReporter interface {
	Breaker(name string) (circuit.State, bool)
}

type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Routes         []Registrar
	Checks         map[string]HealthCheck
	Breakers       BreakerReporter
	BreakerNames   []string
}

const healthCheckTimeout = 2 * time.Second

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Success  bool              `json:"success"`
	Checks   map[string]string `json:"checks"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// NewRouter wires every route behind the shared middleware chain.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger, cfg.Metrics))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/healthz", healthHandler(cfg))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
		for _, routes := range cfg.Routes {
			routes.Register(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method_not_allowed"})
	})
	return r
}

func healthHandler(cfg Config) http.HandlerFunc {
	names := make([]string, 0, len(cfg.Checks))
	for name := range cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := HealthResponse{Success: true, Checks: make(map[string]string, len(names))}
		for _, name := range names {
			if err := cfg.Checks[name](ctx); err != nil {
				resp.Success = false
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
		// An open breaker degrades invalidation, not serving.
		if cfg.Breakers != nil {
			resp.Breakers = make(map[string]string, len(cfg.BreakerNames))
			for _, name := range cfg.BreakerNames {
				if state, ok := cfg.Breakers.Breaker(name); ok {
					resp.Breakers[name] = state.String()
				}
			}
		}

		status := http.StatusOK
		if !resp.Success {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
