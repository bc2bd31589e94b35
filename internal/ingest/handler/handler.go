package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	catalog "sitecarbon/internal/catalog/models"
	"sitecarbon/internal/ingest/models"
	"sitecarbon/internal/ingest/service"
	"sitecarbon/internal/ingest/sheet"
	"sitecarbon/internal/revalidate"
	id "sitecarbon/pkg/domain"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/platform/httputil"
	"sitecarbon/pkg/requestcontext"
)

// Service defines the upload operations.
type Service interface {
	Upload(ctx context.Context, projectID id.ProjectID, rows []models.RawRow) (models.UploadResult, error)
	Preview(ctx context.Context, projectID id.ProjectID, rows []models.RawRow) (*service.PreviewResult, error)
}

// CatalogLoader loads the lookup lists for a project.
type CatalogLoader interface {
	Load(ctx context.Context, projectID id.ProjectID) (*catalog.Catalog, error)
}

// Templates renders the upload template.
type Templates interface {
	CSV(ctx context.Context, projectID id.ProjectID) (string, error)
	XLSX(ctx context.Context, projectID id.ProjectID) ([]byte, error)
}

const (
	defaultMaxUploadBytes = 10 << 20
	fileField             = "file"
	mappingField          = "mapping"
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler wires upload endpoints to the ingest service.
type Handler struct {
	service        Service
	catalog        CatalogLoader
	templates      Templates
	views          *revalidate.Views
	logger         *slog.Logger
	maxUploadBytes int64
}

type Option func(*Handler)

// WithViews serves the lookup endpoint through a view cache.
func WithViews(v *revalidate.Views) Option {
	return func(h *Handler) {
		h.views = v
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func New(svc Service, loader CatalogLoader, templates Templates, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:        svc,
		catalog:        loader,
		templates:      templates,
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts upload endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/lookup", h.HandleLookup)
		r.Get("/deliveries/template", h.HandleTemplate)
		r.Post("/deliveries/bulk", h.HandleBulkUpload)
		r.Post("/deliveries/preview", h.HandlePreview)
	})
}

// HandleLookup handles GET /projects/{projectID}/lookup.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	path := revalidate.ProjectPath(projectID) + "/lookup"
	data, hit, err := h.views.Render(ctx, path, func(ctx context.Context) (any, error) {
		cat, err := h.catalog.Load(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return FromCatalog(cat), nil
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"project_id", projectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if hit {
		w.Header().Set("X-Cache", "hit")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleTemplate handles GET /projects/{projectID}/deliveries/template.
// ?format=xlsx returns a workbook, anything else CSV.
func (h *Handler) HandleTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	format := sheet.Format(strings.ToLower(r.URL.Query().Get("format")))
	var (
		body        []byte
		contentType string
	)
	switch format {
	case sheet.FormatXLSX:
		body, err = h.templates.XLSX(ctx, projectID)
		contentType = xlsxContentType
	case "", sheet.FormatCSV:
		format = sheet.FormatCSV
		var text string
		text, err = h.templates.CSV(ctx, projectID)
		body = []byte(text)
		contentType = "text/csv; charset=utf-8"
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "format must be csv or xlsx"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "template generation failed",
			"request_id", requestcontext.RequestID(ctx),
			"project_id", projectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	filename := "delivery-template-" + time.Now().UTC().Format(models.DateLayout) + "." + string(format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleBulkUpload handles POST /projects/{projectID}/deliveries/bulk. The
// body is a JSON document of rows, a CSV or XLSX file, or a multipart form
// carrying one.
func (h *Handler) HandleBulkUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.FailedUpload(dErrors.MessageOf(err)))
		return
	}

	rows, err := h.readRows(w, r)
	if err != nil {
		httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeOf(err)), models.FailedUpload(err.Error()))
		return
	}

	result, err := h.service.Upload(ctx, projectID, rows)
	if err != nil {
		h.logger.ErrorContext(ctx, "bulk upload failed",
			"request_id", requestcontext.RequestID(ctx),
			"project_id", projectID.String(),
			"rows", len(rows),
			"error", err,
		)
		httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeOf(err)), result)
		return
	}

	h.logger.InfoContext(ctx, "bulk upload accepted",
		"request_id", requestcontext.RequestID(ctx),
		"project_id", projectID.String(),
		"valid", result.ValidDeliveries,
		"invalid", result.InvalidDeliveries,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandlePreview handles POST /projects/{projectID}/deliveries/preview. It
// accepts the same bodies as the bulk upload and writes nothing.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rows, err := h.readRows(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Preview(ctx, projectID, rows)
	if err != nil {
		h.logger.ErrorContext(ctx, "preview failed",
			"request_id", requestcontext.RequestID(ctx),
			"project_id", projectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPreview(result))
}

// readRows decodes the request body by content type.
func (h *Handler) readRows(w http.ResponseWriter, r *http.Request) ([]models.RawRow, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req UploadRequest
		if err := httputil.DecodeJSON(r.Body, &req); err != nil {
			return nil, err
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return req.Rows, nil

	case "multipart/form-data":
		return h.readMultipart(r)

	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, bodyError(err)
		}
		mapping, err := ParseMapping(r.URL.Query().Get(mappingField))
		if err != nil {
			return nil, err
		}
		return ParseFile(data, r.URL.Query().Get("filename"), mapping)
	}
}

func (h *Handler) readMultipart(r *http.Request) ([]models.RawRow, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return nil, bodyError(err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(fileField)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, bodyError(err)
	}
	mapping, err := ParseMapping(r.FormValue(mappingField))
	if err != nil {
		return nil, err
	}
	return ParseFile(data, header.Filename, mapping)
}

// ParseFile reads a CSV or XLSX upload. mapping adds header aliases keyed by
// header text.
func ParseFile(data []byte, filename string, mapping map[string]string) ([]models.RawRow, error) {
	format, err := sheet.Detect(data, filename)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unsupported file, upload CSV or XLSX")
	}
	opts := make([]sheet.Option, 0, len(mapping))
	for header, key := range mapping {
		opts = append(opts, sheet.WithColumn(key, header))
	}
	rows, err := sheet.New(opts...).Parse(data, format)
	if err != nil {
		if errors.Is(err, sheet.ErrNoHeader) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "no header row found, use the delivery template")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read file")
	}
	return rows, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "upload too large")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read upload")
}
