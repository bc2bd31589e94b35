package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sitecarbon/internal/app"
	httpapi "sitecarbon/internal/http"
	ingesthandler "sitecarbon/internal/ingest/handler"
	"sitecarbon/internal/platform/config"
	"sitecarbon/internal/platform/httpserver"
	"sitecarbon/internal/platform/logger"
	"sitecarbon/internal/platform/metrics"
	reconcilehandler "sitecarbon/internal/reconcile/handler"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.New("info", "json").Error("load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("info", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown cleanup failed", "error", err)
		}
	}()

	checks := make(map[string]httpapi.HealthCheck, len(a.Checks))
	for name, check := range a.Checks {
		checks[name] = check
	}
	router := httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxUploadBytes + 1<<20,
		Routes: []httpapi.Registrar{
			ingesthandler.New(a.Ingest, a.Catalog, a.Templates, log,
				ingesthandler.WithViews(a.Views),
				ingesthandler.WithMaxUploadBytes(cfg.MaxUploadBytes),
			),
			reconcilehandler.New(a.Reconcile, log, reconcilehandler.WithViews(a.Views)),
		},
		Checks:       checks,
		Breakers:     a.Fanout,
		BreakerNames: []string{app.TargetRedis, app.TargetKafka},
	})

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)
	log.Info("starting sitecarbon", "addr", cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
