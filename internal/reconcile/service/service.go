// Package service promotes raw deliveries to deliveries once an operator has
// supplied the references the upload could not resolve.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sitecarbon/internal/carbon"
	"sitecarbon/internal/ingest/models"
	"sitecarbon/internal/ingest/resolver"
	"sitecarbon/internal/reconcile/metrics"
	"sitecarbon/internal/revalidate"
	id "sitecarbon/pkg/domain"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/platform/sentinel"
	"sitecarbon/pkg/requestcontext"
)

// RawDeliveryStore reads and removes parked rows.
type RawDeliveryStore interface {
	FindByID(ctx context.Context, rawID id.RawDeliveryID) (*models.RawDelivery, error)
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]models.RawDelivery, error)
	Delete(ctx context.Context, rawID id.RawDeliveryID) error
}

// DeliveryStore writes promoted deliveries.
type DeliveryStore interface {
	Insert(ctx context.Context, delivery models.Delivery) error
	ExistsBySource(ctx context.Context, rawID id.RawDeliveryID) (bool, error)
}

// Calculator computes embodied CO2 for resolved lines.
type Calculator interface {
	Compute(ctx context.Context, lines []carbon.Line) ([]float64, int)
}

// Invalidator tells caches that views of the given paths are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

const defaultInvalidateTimeout = 2 * time.Second

// Resolution carries the operator's corrections. A nil id falls back to
// whatever the upload already resolved. DeliveryDate is only used when the
// uploaded date is missing or unreadable.
type Resolution struct {
	ContractorID *id.ContractorID
	LocationID   *id.LocationID
	CostCodeID   *id.CostCodeID
	MaterialID   *id.MaterialID
	SupplierID   *id.SupplierID
	UnitID       *id.UnitID
	DeliveryDate string
}

// Service lists and resolves raw deliveries.
type Service struct {
	raws        RawDeliveryStore
	deliveries  DeliveryStore
	calculator  Calculator
	tx          TxRunner
	invalidator Invalidator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
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

// WithTxRunner sets the transaction boundary for promotions. Without one the
// insert and delete run back to back and a failed delete leaves both rows
// until the resolve is retried.
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(raws RawDeliveryStore, deliveries DeliveryStore, calculator Calculator, opts ...Option) *Service {
	s := &Service{
		raws:       raws,
		deliveries: deliveries,
		calculator: calculator,
		logger:     slog.Default(),
		tracer:     otel.Tracer("sitecarbon/internal/reconcile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the project's raw deliveries, newest first.
func (s *Service) List(ctx context.Context, projectID id.ProjectID) ([]models.RawDelivery, error) {
	if projectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	}
	raws, err := s.raws.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch raw deliveries")
	}
	s.metrics.ObservePending(len(raws))
	return raws, nil
}

// Resolve merges res into the raw delivery, stores the resulting delivery
// under the raw delivery's id and deletes the raw delivery. Resolving an id
// that was already promoted skips the insert, so retries are safe.
func (s *Service) Resolve(ctx context.Context, rawID id.RawDeliveryID, res Resolution) (*models.Delivery, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.Resolve", trace.WithAttributes(
		attribute.String("raw_delivery_id", rawID.String()),
	))
	defer span.End()

	if rawID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "raw delivery id is required")
	}

	raw, err := s.raws.FindByID(ctx, rawID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementOutcome(metrics.OutcomeNotFound)
			return nil, dErrors.New(dErrors.CodeNotFound, "Raw delivery not found")
		}
		s.metrics.IncrementOutcome(metrics.OutcomeFailed)
		span.SetStatus(codes.Error, "load raw delivery failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load raw delivery")
	}

	delivery, err := Merge(raw, res, requestcontext.Now(ctx))
	if err != nil {
		s.metrics.IncrementOutcome(metrics.OutcomeInvalid)
		return nil, err
	}
	co2, _ := s.calculator.Compute(ctx, []carbon.Line{{MaterialID: delivery.MaterialID, Quantity: delivery.Quantity}})
	delivery.EmbodiedCO2 = co2[0]

	replayed := false
	promote := func(ctx context.Context) error {
		exists, err := s.deliveries.ExistsBySource(ctx, rawID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "Failed to create delivery")
		}
		if exists {
			replayed = true
		} else if err := s.deliveries.Insert(ctx, delivery); err != nil {
			code := dErrors.CodeInternal
			if errors.Is(err, sentinel.ErrConflict) {
				code = dErrors.CodeConflict
			}
			return dErrors.Wrap(err, code, "Failed to create delivery")
		}
		if err := s.raws.Delete(ctx, rawID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "Failed to delete raw delivery")
		}
		return nil
	}

	if s.tx != nil {
		err = s.tx.RunInTx(withTxKey(ctx, rawID.String()), promote)
	} else {
		err = promote(ctx)
	}
	if err != nil {
		s.metrics.IncrementOutcome(metrics.OutcomeFailed)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "resolve raw delivery failed",
			"raw_delivery_id", rawID.String(),
			"project_id", raw.ProjectID.String(),
			"error", err,
		)
		return nil, err
	}

	if replayed {
		s.metrics.IncrementOutcome(metrics.OutcomeReplayed)
	} else {
		s.metrics.IncrementOutcome(metrics.OutcomePromoted)
	}
	s.logger.InfoContext(ctx, "raw delivery resolved",
		"raw_delivery_id", rawID.String(),
		"project_id", raw.ProjectID.String(),
		"request_id", requestcontext.RequestID(ctx),
		"replayed", replayed,
	)
	s.invalidate(ctx, revalidate.ProjectPath(raw.ProjectID), revalidate.DeliveriesPath)
	return &delivery, nil
}

// Merge builds the delivery a raw row becomes once res is applied. Operator
// ids are trusted and not checked against the catalog.
func Merge(raw *models.RawDelivery, res Resolution, now time.Time) (models.Delivery, error) {
	contractor := pick(res.ContractorID, raw.ContractorID)
	location := pick(res.LocationID, raw.LocationID)
	material := pick(res.MaterialID, raw.MaterialID)
	supplier := pick(res.SupplierID, raw.SupplierID)

	var missing []string
	if contractor == nil {
		missing = append(missing, "contractor")
	}
	if location == nil {
		missing = append(missing, "location")
	}
	if material == nil {
		missing = append(missing, "material")
	}
	if supplier == nil {
		missing = append(missing, "supplier")
	}
	date, ok := resolver.ParseDate(raw.DeliveryDate)
	if !ok {
		date, ok = resolver.ParseDate(res.DeliveryDate)
	}
	if !ok {
		missing = append(missing, "delivery date")
	}
	if len(missing) > 0 {
		return models.Delivery{}, dErrors.New(dErrors.CodeValidation,
			"Missing required fields: "+strings.Join(missing, ", "))
	}

	rawID := raw.ID
	d := models.Delivery{
		ID:           id.DeliveryID(raw.ID),
		ProjectID:    raw.ProjectID,
		ContractorID: *contractor,
		LocationID:   *location,
		CostCodeID:   pick(res.CostCodeID, raw.CostCodeID),
		MaterialID:   *material,
		SupplierID:   *supplier,
		UnitID:       pick(res.UnitID, raw.UnitID),
		DeliveryDate: date,
		TotalCost:    raw.TotalCost,
		SourceRawID:  &rawID,
		CreatedAt:    now,
	}
	if raw.Quantity != nil {
		d.Quantity = *raw.Quantity
	}
	if docket := strings.TrimSpace(raw.DocketNumber); docket != "" {
		d.DocketNumber = &docket
	}
	return d, nil
}

func pick[T any](override, fallback *T) *T {
	if override != nil {
		return override
	}
	return fallback
}

// invalidate never fails the caller; the promotion already committed.
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
