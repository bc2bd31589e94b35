// Package app builds the service graph shared by the API server and the
// operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"sitecarbon/internal/carbon"
	catalogmetrics "sitecarbon/internal/catalog/metrics"
	catalogsvc "sitecarbon/internal/catalog/service"
	catalogstore "sitecarbon/internal/catalog/store"
	ingestmetrics "sitecarbon/internal/ingest/metrics"
	ingestsvc "sitecarbon/internal/ingest/service"
	ingeststore "sitecarbon/internal/ingest/store"
	"sitecarbon/internal/platform/config"
	"sitecarbon/internal/platform/kafka"
	"sitecarbon/internal/platform/postgres"
	"sitecarbon/internal/platform/redis"
	reconcilemetrics "sitecarbon/internal/reconcile/metrics"
	reconcilesvc "sitecarbon/internal/reconcile/service"
	"sitecarbon/internal/revalidate"
	"sitecarbon/internal/template"
	id "sitecarbon/pkg/domain"
)

// Invalidation target names, also used as breaker names.
const (
	TargetRedis = "redis"
	TargetKafka = "kafka"
)

type catalogStore interface {
	catalogsvc.Store
	carbon.FactorStore
}

type deliveryStore interface {
	ingestsvc.DeliveryStore
	reconcilesvc.DeliveryStore
}

type rawDeliveryStore interface {
	ingestsvc.RawDeliveryStore
	reconcilesvc.RawDeliveryStore
}

// App holds the wired services and the connections behind them.
type App struct {
	Catalog   *catalogsvc.Loader
	Templates *template.Generator
	Ingest    *ingestsvc.Service
	Reconcile *reconcilesvc.Service
	Views     *revalidate.Views
	Fanout    *revalidate.Fanout

	// DB is nil when running on in-memory stores.
	DB *sql.DB
	// DemoProject is set when in-memory stores were seeded with demo data.
	DemoProject *id.ProjectID

	Checks map[string]func(context.Context) error

	closers []func() error
}

// New connects to the configured backends and builds every service.
// Without DATABASE_URL the stores live in memory and carry a demo catalog.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Checks: map[string]func(context.Context) error{}}

	var (
		catalog    catalogStore
		deliveries deliveryStore
		raws       rawDeliveryStore
		tx         reconcilesvc.TxRunner
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		a.Checks["postgres"] = db.PingContext
		catalog = catalogstore.NewPostgres(db)
		deliveries = ingeststore.NewPostgresDeliveryStore(db)
		raws = ingeststore.NewPostgresRawDeliveryStore(db)
		tx = postgres.NewTxRunner(db)
	} else {
		mem := catalogstore.NewInMemory()
		projectID := id.ProjectID(uuid.New())
		catalogstore.DemoSeed(projectID).LoadInto(mem)
		a.DemoProject = &projectID
		catalog = mem
		deliveries = ingeststore.NewInMemoryDeliveryStore()
		raws = ingeststore.NewInMemoryRawDeliveryStore()
		tx = reconcilesvc.NewShardedTx()
		logger.InfoContext(ctx, "using in-memory stores with demo catalog", "project_id", projectID.String())
	}

	targets, cache, err := a.invalidationTargets(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Fanout = revalidate.NewFanout(targets,
		revalidate.WithLogger(logger),
		revalidate.WithMetrics(revalidate.NewMetrics(reg)),
	)
	var invalidator revalidate.Invalidator = revalidate.Nop{}
	if a.Fanout.Len() > 0 {
		invalidator = a.Fanout
	}
	if cache != nil {
		a.Views = revalidate.NewViews(cache, cfg.Redis.ViewTTL, logger)
	}

	calculator := carbon.NewCalculator(catalog, carbon.WithLogger(logger))
	a.Catalog = catalogsvc.New(catalog,
		catalogsvc.WithLogger(logger),
		catalogsvc.WithMetrics(catalogmetrics.New(reg)),
	)
	a.Templates = template.New(a.Catalog, template.WithLogger(logger))
	a.Ingest = ingestsvc.New(a.Catalog, deliveries, raws, calculator,
		ingestsvc.WithLogger(logger),
		ingestsvc.WithMetrics(ingestmetrics.New(reg)),
		ingestsvc.WithInvalidator(invalidator),
		ingestsvc.WithWorkers(cfg.IngestWorkers),
	)
	a.Reconcile = reconcilesvc.New(raws, deliveries, calculator,
		reconcilesvc.WithLogger(logger),
		reconcilesvc.WithMetrics(reconcilemetrics.New(reg)),
		reconcilesvc.WithInvalidator(invalidator),
		reconcilesvc.WithTxRunner(tx),
	)
	return a, nil
}

func (a *App) invalidationTargets(ctx context.Context, cfg config.Server, logger *slog.Logger) ([]revalidate.Target, revalidate.ViewCache, error) {
	var (
		targets []revalidate.Target
		cache   revalidate.ViewCache
	)

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
		a.Checks["redis"] = rdb.Health
		r := revalidate.NewRedis(rdb, cfg.Redis.KeyPrefix, cfg.Redis.Channel)
		targets = append(targets, revalidate.Target{Name: TargetRedis, Invalidator: r})
		cache = r
	}

	client, err := kafka.New(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		a.Checks["kafka"] = client.Ping
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.RevalidateTopic); err != nil {
			// The broker may forbid topic creation; producing still works if
			// the topic exists.
			logger.WarnContext(ctx, "could not ensure revalidate topic",
				"topic", cfg.Kafka.RevalidateTopic,
				"error", err,
			)
		}
		targets = append(targets, revalidate.Target{Name: TargetKafka, Invalidator: revalidate.NewKafka(client, cfg.Kafka.RevalidateTopic)})
	}
	return targets, cache, nil
}

// Close releases every connection, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close app: %w", errors.Join(errs...))
	}
	return nil
}

var _ revalidate.Producer = (*kgo.Client)(nil)
