// Package service runs bulk delivery uploads: every row is resolved against
// the project's catalog, split into resolved and unresolved partitions, and
// each partition is written in one bulk insert.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sitecarbon/internal/carbon"
	catalog "sitecarbon/internal/catalog/models"
	"sitecarbon/internal/ingest/metrics"
	"sitecarbon/internal/ingest/models"
	"sitecarbon/internal/ingest/resolver"
	"sitecarbon/internal/revalidate"
	id "sitecarbon/pkg/domain"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/requestcontext"
)

// CatalogLoader loads the reference catalog for a project.
type CatalogLoader interface {
	Load(ctx context.Context, projectID id.ProjectID) (*catalog.Catalog, error)
}

// DeliveryStore persists resolved deliveries. InsertMany is atomic for its
// batch.
type DeliveryStore interface {
	InsertMany(ctx context.Context, deliveries []models.Delivery) error
}

// RawDeliveryStore persists rows parked for reconciliation. InsertMany is
// atomic for its batch.
type RawDeliveryStore interface {
	InsertMany(ctx context.Context, raws []models.RawDelivery) error
}

// Calculator computes embodied CO2 for resolved lines.
type Calculator interface {
	Compute(ctx context.Context, lines []carbon.Line) ([]float64, int)
}

// Invalidator tells caches that views of the given paths are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

const (
	defaultWorkers           = 8
	defaultInvalidateTimeout = 2 * time.Second
)

// Service runs uploads and previews.
type Service struct {
	catalog     CatalogLoader
	deliveries  DeliveryStore
	raws        RawDeliveryStore
	calculator  Calculator
	invalidator Invalidator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	workers     int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

// WithWorkers bounds how many rows are resolved concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(loader CatalogLoader, deliveries DeliveryStore, raws RawDeliveryStore, calculator Calculator, opts ...Option) *Service {
	s := &Service{
		catalog:    loader,
		deliveries: deliveries,
		raws:       raws,
		calculator: calculator,
		logger:     slog.Default(),
		tracer:     otel.Tracer("sitecarbon/internal/ingest"),
		workers:    defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload resolves rows and persists both partitions: resolved deliveries
// first, then unresolved rows. The two inserts are independent, so a failure
// in the second leaves the first committed and the upload is not safe to
// retry as-is.
func (s *Service) Upload(ctx context.Context, projectID id.ProjectID, rows []models.RawRow) (models.UploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.Upload", trace.WithAttributes(
		attribute.String("project_id", projectID.String()),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveUpload(time.Since(start)) }()

	results, err := s.resolveAll(ctx, projectID, rows)
	if err != nil {
		s.metrics.IncrementFailure("catalog")
		span.SetStatus(codes.Error, err.Error())
		return models.FailedUpload(err.Error()), err
	}

	valid, invalid := s.partition(ctx, projectID, results)
	s.metrics.ObservePartition(len(valid), len(invalid))
	span.SetAttributes(
		attribute.Int("valid", len(valid)),
		attribute.Int("invalid", len(invalid)),
	)

	if len(valid) > 0 {
		if err := s.deliveries.InsertMany(ctx, valid); err != nil {
			s.metrics.IncrementFailure("insert_valid")
			span.SetStatus(codes.Error, "insert valid deliveries failed")
			s.logger.ErrorContext(ctx, "failed to insert valid deliveries",
				"project_id", projectID.String(),
				"count", len(valid),
				"error", err,
			)
			wrapped := dErrors.Wrap(err, dErrors.CodeInternal, "Failed to insert valid deliveries")
			return models.FailedUpload(wrapped.Error()), wrapped
		}
	}

	if len(invalid) > 0 {
		if err := s.raws.InsertMany(ctx, invalid); err != nil {
			s.metrics.IncrementFailure("insert_invalid")
			span.SetStatus(codes.Error, "insert invalid deliveries failed")
			s.logger.ErrorContext(ctx, "failed to insert invalid deliveries after valid ones were committed",
				"project_id", projectID.String(),
				"count", len(invalid),
				"committed_valid", len(valid),
				"error", err,
			)
			wrapped := dErrors.Wrap(err, dErrors.CodeInternal, "Failed to insert invalid deliveries")
			return models.FailedUpload(wrapped.Error()), wrapped
		}
	}

	s.logger.InfoContext(ctx, "bulk upload complete",
		"project_id", projectID.String(),
		"request_id", requestcontext.RequestID(ctx),
		"valid", len(valid),
		"invalid", len(invalid),
	)

	if len(valid)+len(invalid) > 0 {
		s.invalidate(ctx, revalidate.ProjectPath(projectID), revalidate.DeliveriesPath)
	}

	return models.UploadResult{
		Success:           true,
		ValidDeliveries:   len(valid),
		InvalidDeliveries: len(invalid),
	}, nil
}

// PreviewRow is the resolution outcome of one row without persisting it.
type PreviewRow struct {
	Index       int                `json:"index"`
	Row         models.RawRow      `json:"row"`
	Valid       bool               `json:"valid"`
	Errors      []string           `json:"errors,omitempty"`
	Issues      []resolver.Issue   `json:"issues,omitempty"`
	IDs         models.ResolvedIDs `json:"resolved"`
	EmbodiedCO2 *float64           `json:"embodied_co2,omitempty"`
}

type PreviewResult struct {
	Valid   int          `json:"validDeliveries"`
	Invalid int          `json:"invalidDeliveries"`
	Rows    []PreviewRow `json:"rows"`
}

// Preview resolves rows exactly as Upload would and reports each outcome.
// Nothing is written.
func (s *Service) Preview(ctx context.Context, projectID id.ProjectID, rows []models.RawRow) (*PreviewResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.Preview", trace.WithAttributes(
		attribute.String("project_id", projectID.String()),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	results, err := s.resolveAll(ctx, projectID, rows)
	if err != nil {
		return nil, err
	}

	var lines []carbon.Line
	for _, r := range results {
		if r.OK() {
			lines = append(lines, carbon.Line{MaterialID: *r.IDs.MaterialID, Quantity: *r.Quantity})
		}
	}
	var co2 []float64
	if len(lines) > 0 {
		co2, _ = s.calculator.Compute(ctx, lines)
	}

	out := &PreviewResult{Rows: make([]PreviewRow, len(results))}
	next := 0
	for i, r := range results {
		pr := PreviewRow{
			Index:  i,
			Row:    r.Row,
			Valid:  r.OK(),
			Errors: r.Errors(),
			Issues: r.Issues,
			IDs:    r.IDs,
		}
		if pr.Valid {
			v := co2[next]
			next++
			pr.EmbodiedCO2 = &v
			out.Valid++
		} else {
			out.Invalid++
		}
		out.Rows[i] = pr
	}
	return out, nil
}

// resolveAll loads the catalog once and resolves rows on a bounded pool.
// Results keep input order.
func (s *Service) resolveAll(ctx context.Context, projectID id.ProjectID, rows []models.RawRow) ([]resolver.Result, error) {
	if projectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	}
	cat, err := s.catalog.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if missing := cat.UnavailableCategories(); len(missing) > 0 {
		s.logger.WarnContext(ctx, "resolving against incomplete catalog",
			"project_id", projectID.String(),
			"unavailable", missing,
		)
	}

	index := resolver.NewIndex(cat, projectID)
	results := make([]resolver.Result, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = index.Resolve(rows[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "upload cancelled")
	}

	for _, r := range results {
		for _, is := range r.Issues {
			s.metrics.IncrementIssue(is.Field, string(is.Kind))
		}
	}
	return results, nil
}

// partition builds one record per row: a Delivery when the row resolved,
// a RawDelivery otherwise.
func (s *Service) partition(ctx context.Context, projectID id.ProjectID, results []resolver.Result) ([]models.Delivery, []models.RawDelivery) {
	now := requestcontext.Now(ctx)
	var (
		valid   []models.Delivery
		invalid []models.RawDelivery
		lines   []carbon.Line
	)

	for _, r := range results {
		if r.OK() {
			d := newDelivery(projectID, r, now)
			valid = append(valid, d)
			lines = append(lines, carbon.Line{MaterialID: d.MaterialID, Quantity: d.Quantity})
			continue
		}
		invalid = append(invalid, newRawDelivery(projectID, r, now))
	}

	if len(lines) > 0 {
		co2, missing := s.calculator.Compute(ctx, lines)
		for i := range valid {
			valid[i].EmbodiedCO2 = co2[i]
		}
		s.metrics.AddMissingFactors(missing)
		if missing > 0 {
			s.logger.DebugContext(ctx, "deliveries stored without emission factor",
				"project_id", projectID.String(),
				"count", missing,
			)
		}
	}
	return valid, invalid
}

func newDelivery(projectID id.ProjectID, r resolver.Result, now time.Time) models.Delivery {
	d := models.Delivery{
		ID:           id.DeliveryID(uuid.New()),
		ProjectID:    projectID,
		ContractorID: *r.IDs.ContractorID,
		LocationID:   *r.IDs.LocationID,
		CostCodeID:   r.IDs.CostCodeID,
		MaterialID:   *r.IDs.MaterialID,
		SupplierID:   *r.IDs.SupplierID,
		UnitID:       r.IDs.UnitID,
		DeliveryDate: *r.DeliveryDate,
		Quantity:     *r.Quantity,
		TotalCost:    r.TotalCost,
		CreatedAt:    now,
	}
	if docket := strings.TrimSpace(r.Row.DocketNumber); docket != "" {
		d.DocketNumber = &docket
	}
	return d
}

func newRawDelivery(projectID id.ProjectID, r resolver.Result, now time.Time) models.RawDelivery {
	row := r.Row
	return models.RawDelivery{
		ID:                  id.RawDeliveryID(uuid.New()),
		ProjectID:           projectID,
		ContractorName:      row.Contractor,
		DeliveryDate:        row.DeliveryDate,
		LocationName:        row.DesignPackage,
		CostCodeName:        row.CostCode,
		DocketNumber:        row.DocketNumber,
		MaterialTypeName:    row.MaterialType,
		SupplierName:        row.Supplier,
		MaterialName:        row.Material,
		UnitName:            row.Unit,
		Quantity:            r.Quantity,
		TotalCost:           r.TotalCost,
		MaterialDescription: row.MaterialDescription,
		OriginPostcode:      row.Origin,
		ResolvedIDs:         r.IDs,
		ValidationErrors:    r.Errors(),
		CreatedAt:           now,
	}
}

// invalidate never fails the caller; the write already succeeded.
func (s *Service) invalidate(ctx context.Context, paths ...string) {
	if s.invalidator == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultInvalidateTimeout)
	defer cancel()
	if err := s.invalidator.Invalidate(ctx, paths...); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed",
			"paths", paths,
			"error", err,
		)
	}
}
