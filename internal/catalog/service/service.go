// Package service loads the reference catalog for a project.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sitecarbon/internal/catalog/metrics"
	"sitecarbon/internal/catalog/models"
	id "sitecarbon/pkg/domain"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/platform/sentinel"
)

// Store reads the canonical reference tables. List methods return entries
// ordered by name; that order decides which entry wins on duplicate names.
type Store interface {
	FindProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error)
	ListContractors(ctx context.Context) ([]models.Contractor, error)
	ListDesignPackages(ctx context.Context, projectID id.ProjectID) ([]models.DesignPackage, error)
	ListCostCodes(ctx context.Context, projectID id.ProjectID) ([]models.CostCode, error)
	ListMaterialTypes(ctx context.Context) ([]models.MaterialType, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	ListMaterials(ctx context.Context) ([]models.Material, error)
	ListUnits(ctx context.Context) ([]models.Unit, error)
}

const defaultFetchTimeout = 10 * time.Second

// Loader fetches every reference list concurrently. A failed list is recorded
// in Catalog.Unavailable and left empty; it never fails the load.
type Loader struct {
	store        Store
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	fetchTimeout time.Duration
}

type Option func(*Loader)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(l *Loader) {
		l.tracer = t
	}
}

// WithFetchTimeout bounds each load. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.fetchTimeout = d
	}
}

func New(store Store, opts ...Option) *Loader {
	l := &Loader{
		store:        store,
		logger:       slog.Default(),
		tracer:       otel.Tracer("sitecarbon/internal/catalog"),
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds the catalog for projectID. It only returns an error when ctx is
// already done before any fetch starts.
func (l *Loader) Load(ctx context.Context, projectID id.ProjectID) (*models.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "catalog load cancelled")
	}

	ctx, span := l.tracer.Start(ctx, "catalog.Load", trace.WithAttributes(
		attribute.String("project_id", projectID.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() { l.metrics.ObserveLoad(time.Since(start)) }()

	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	cat := &models.Catalog{ProjectID: projectID}
	var (
		mu     sync.Mutex
		failed = map[models.Category]error{}
	)
	fail := func(c models.Category, err error) {
		mu.Lock()
		failed[c] = err
		mu.Unlock()
	}

	// Fetches never return an error to the group so one failure cannot
	// cancel the others.
	var g errgroup.Group

	g.Go(func() error {
		project, err := fetch(ctx, l, models.CategoryProject, func(ctx context.Context) (*models.Project, error) {
			return l.store.FindProject(ctx, projectID)
		})
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				fail(models.CategoryProject, err)
			}
			return nil
		}
		cat.Project = project
		return nil
	})
	g.Go(func() error {
		v, err := fetch(ctx, l, models.CategoryContractors, l.store.ListContractors)
		if err != nil {
			fail(models.CategoryContractors, err)
		}
		cat.Contractors = v
		return nil
	})
	g.Go(func() error {
		v, err := fetch(ctx, l, models.CategoryDesignPackages, func(ctx context.Context) ([]models.DesignPackage, error) {
			return l.store.ListDesignPackages(ctx, projectID)
		})
		if err != nil {
			fail(models.CategoryDesignPackages, err)
		}
		cat.DesignPackages = v
		return nil
	})
	g.Go(func() error {
		v, err := fetch(ctx, l, models.CategoryCostCodes, func(ctx context.Context) ([]models.CostCode, error) {
			return l.store.ListCostCodes(ctx, projectID)
		})
		if err != nil {
			fail(models.CategoryCostCodes, err)
		}
		cat.CostCodes = v
		return nil
	})
	g.Go(func() error {
		v, err := fetch(ctx, l, models.CategoryMaterialTypes, l.store.ListMaterialTypes)
		if err != nil {
			fail(models.CategoryMaterialTypes, err)
		}
		cat.MaterialTypes = v
		return nil
	})
	g.Go(func() error {
		v, err := fetch(ctx, l, models.CategorySuppliers, l.store.ListSuppliers)
		if err != nil {
			fail(models.CategorySuppliers, err)
		}
		cat.Suppliers = v
		return nil
	})
	g.Go(func() error {
		v, err := fetch(ctx, l, models.CategoryMaterials, l.store.ListMaterials)
		if err != nil {
			fail(models.CategoryMaterials, err)
		}
		cat.Materials = v
		return nil
	})
	g.Go(func() error {
		v, err := fetch(ctx, l, models.CategoryUnits, l.store.ListUnits)
		if err != nil {
			fail(models.CategoryUnits, err)
		}
		cat.Units = v
		return nil
	})

	_ = g.Wait()

	if len(failed) > 0 {
		cat.Unavailable = failed
		span.SetStatus(codes.Error, "catalog partially unavailable")
		for c, err := range failed {
			span.RecordError(err, trace.WithAttributes(attribute.String("category", string(c))))
		}
	}
	return cat, nil
}

// fetch times one store call and clears the result on failure.
func fetch[T any](ctx context.Context, l *Loader, c models.Category, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	l.metrics.ObserveFetch(string(c), time.Since(start))
	if err != nil {
		var zero T
		if errors.Is(err, sentinel.ErrNotFound) && c == models.CategoryProject {
			l.logger.DebugContext(ctx, "project not found for catalog", "category", string(c))
			return zero, err
		}
		l.metrics.IncrementFetchFailure(string(c))
		l.logger.WarnContext(ctx, "catalog fetch failed, treating as empty",
			"category", string(c),
			"error", err,
		)
		return zero, err
	}
	return v, nil
}
