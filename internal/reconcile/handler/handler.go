package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sitecarbon/internal/ingest/models"
	"sitecarbon/internal/reconcile/service"
	"sitecarbon/internal/revalidate"
	id "sitecarbon/pkg/domain"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/platform/httputil"
	"sitecarbon/pkg/requestcontext"
)

// Service defines the reconciliation operations.
type Service interface {
	List(ctx context.Context, projectID id.ProjectID) ([]models.RawDelivery, error)
	Resolve(ctx context.Context, rawID id.RawDeliveryID, res service.Resolution) (*models.Delivery, error)
}

// Handler wires reconciliation endpoints to the service.
type Handler struct {
	service Service
	views   *revalidate.Views
	logger  *slog.Logger
}

type Option func(*Handler)

// rawDeliveriesViewTTL caps how long a raw delivery list stays cached, since
// it changes on every upload and resolve.
const rawDeliveriesViewTTL = 30 * time.Second

// WithViews serves the raw delivery list through a view cache.
func WithViews(v *revalidate.Views) Option {
	return func(h *Handler) {
		h.views = v.Capped(rawDeliveriesViewTTL)
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/projects/{projectID}/raw-deliveries", h.HandleList)
	r.Post("/raw-deliveries/{rawDeliveryID}/resolve", h.HandleResolve)
}

// RawDeliveriesPath is the cached view of a project's raw deliveries. It sits
// under the project path so promotions invalidate it.
func RawDeliveriesPath(projectID id.ProjectID) string {
	return revalidate.ProjectPath(projectID) + "/raw-deliveries"
}

// HandleList handles GET /projects/{projectID}/raw-deliveries.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	data, hit, err := h.views.Render(ctx, RawDeliveriesPath(projectID), func(ctx context.Context) (any, error) {
		raws, err := h.service.List(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return FromRawDeliveries(raws), nil
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "list raw deliveries failed",
			"request_id", requestcontext.RequestID(ctx),
			"project_id", projectID.String(),
			"error", err,
		)
		httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeOf(err)), ResolveResponse{Error: dErrors.MessageOf(err)})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if hit {
		w.Header().Set("X-Cache", "hit")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleResolve handles POST /raw-deliveries/{rawDeliveryID}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rawID, err := id.ParseRawDeliveryID(chi.URLParam(r, "rawDeliveryID"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, ResolveResponse{Error: dErrors.MessageOf(err)})
		return
	}

	var req ResolveRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r.Body, &req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, ResolveResponse{Error: dErrors.MessageOf(err)})
			return
		}
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, ResolveResponse{Error: dErrors.MessageOf(err)})
		return
	}

	delivery, err := h.service.Resolve(ctx, rawID, req.Resolution())
	if err != nil {
		code := dErrors.CodeOf(err)
		msg := "internal error"
		var de *dErrors.Error
		if errors.As(err, &de) {
			msg = err.Error()
		}
		if code != dErrors.CodeNotFound && code != dErrors.CodeValidation {
			h.logger.ErrorContext(ctx, "resolve raw delivery failed",
				"request_id", requestcontext.RequestID(ctx),
				"raw_delivery_id", rawID.String(),
				"error", err,
			)
		}
		httputil.WriteJSON(w, httputil.StatusFor(code), ResolveResponse{Error: msg})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ResolveResponse{Success: true, Delivery: delivery})
}
