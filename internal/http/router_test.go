package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitecarbon/internal/platform/metrics"
	"sitecarbon/internal/platform/middleware"
	"sitecarbon/pkg/platform/circuit"
	"sitecarbon/pkg/requestcontext"
	"sitecarbon/pkg/testutil"
)

type routes func(r chi.Router)

func (f routes) Register(r chi.Router) { f(r) }

type breakers map[string]circuit.State

func (b breakers) Breaker(name string) (circuit.State, bool) {
	s, ok := b[name]
	return s, ok
}

func newTestRouter(t *testing.T, checks map[string]HealthCheck) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	app := routes(func(r chi.Router) {
		r.Get("/projects/{projectID}/ping", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(requestcontext.RequestID(r.Context())))
		})
		r.Get("/boom", func(http.ResponseWriter, *http.Request) {
			panic("kaboom")
		})
	})
	return NewRouter(Config{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		Routes:       []Registrar{app},
		Checks:       checks,
		Breakers:     breakers{"redis": circuit.StateOpen},
		BreakerNames: []string{"redis", "kafka"},
	}), reg
}

func TestRouterPropagatesRequestID(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := testutil.NewRequest(t, http.MethodGet, "/projects/p1/ping")
	req.Header.Set(middleware.RequestIDHeader, "req-7")
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "req-7", rr.Body.String())
	assert.Equal(t, "req-7", rr.Header().Get(middleware.RequestIDHeader))
}

func TestRouterRecoversPanics(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/boom"))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/nowhere"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestHealthz(t *testing.T) {
	testutil.Given(t, "a healthy store and a failing cache", func(t *testing.T) {
		router, _ := newTestRouter(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
		})

		testutil.When(t, "health is requested", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it reports 503 with each check and breaker", func(t *testing.T) {
				require.Equal(t, http.StatusServiceUnavailable, rr.Code)
				body := testutil.UnmarshalResponse[HealthResponse](t, rr)
				assert.False(t, body.Success)
				assert.Equal(t, map[string]string{
					"postgres": "ok",
					"redis":    "dial tcp: connection refused",
				}, body.Checks)
				assert.Equal(t, map[string]string{"redis": "open"}, body.Breakers)
			})
		})
	})

	testutil.Given(t, "no checks", func(t *testing.T) {
		router, _ := newTestRouter(t, nil)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestMetricsEndpointExposesRouteLatency(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/projects/p1/ping"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `route="/projects/{projectID}/ping"`), "latency is labelled by route pattern")
}
