package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,CatalogLoader,Templates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sitecarbon/internal/carbon"
	catalog "sitecarbon/internal/catalog/models"
	catalogservice "sitecarbon/internal/catalog/service"
	catalogstore "sitecarbon/internal/catalog/store"
	"sitecarbon/internal/ingest/handler/mocks"
	"sitecarbon/internal/ingest/models"
	"sitecarbon/internal/ingest/service"
	ingeststore "sitecarbon/internal/ingest/store"
	"sitecarbon/internal/revalidate"
	"sitecarbon/internal/template"
	id "sitecarbon/pkg/domain"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/testutil"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(_ context.Context, path string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[path]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, path string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[path] = data
	return nil
}

// =============================================================================
// Ingest Handler Test Suite
// =============================================================================
// Justification for unit tests: body decoding (JSON, raw CSV, multipart XLSX
// with a column mapping) is the handler's own logic and is verified against a
// mocked service.

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	service   *mocks.MockService
	loader    *mocks.MockCatalogLoader
	templates *mocks.MockTemplates
	cache     *mapCache
	router    http.Handler
	projectID id.ProjectID
	base      string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.loader = mocks.NewMockCatalogLoader(s.ctrl)
	s.templates = mocks.NewMockTemplates(s.ctrl)
	s.cache = &mapCache{data: map[string][]byte{}}
	s.projectID = id.ProjectID(uuid.New())
	s.base = "/projects/" + s.projectID.String()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, s.loader, s.templates, logger,
		WithViews(revalidate.NewViews(s.cache, time.Minute, logger)),
		WithMaxUploadBytes(1<<20),
	)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) row() models.RawRow {
	return models.RawRow{
		Contractor:    "BuildCorp Ltd.",
		DeliveryDate:  "2024-03-01",
		DesignPackage: "Foundation A",
		MaterialType:  "Concrete",
		Supplier:      "Holcim",
		Material:      "32 MPa Mix",
		Unit:          "m3",
		Quantity:      "125.5",
	}
}

func (s *HandlerSuite) TestBulkUploadJSONPassesEveryRow() {
	rows := []models.RawRow{s.row(), {}, {}}
	s.service.EXPECT().Upload(gomock.Any(), s.projectID, rows).
		Return(models.UploadResult{Success: true, ValidDeliveries: 1, InvalidDeliveries: 2}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.base+"/deliveries/bulk",
		map[string]any{"rows": rows})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"success":true,"validDeliveries":1,"invalidDeliveries":2}`, rr.Body.String())
}

func (s *HandlerSuite) TestBulkUploadCSVBody() {
	csv := "# Contractors: BuildCorp Ltd.\n" +
		"Contractor,Delivery Date,Design Package,Material Type,Supplier,Material,Unit,Quantity\n" +
		`BuildCorp Ltd.,2024-03-01,Foundation A,Concrete,"Holcim",32 MPa Mix,m3,125.5` + "\n"
	s.service.EXPECT().Upload(gomock.Any(), s.projectID, []models.RawRow{s.row()}).
		Return(models.UploadResult{Success: true, ValidDeliveries: 1}, nil)

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, s.base+"/deliveries/bulk", "text/csv", csv)
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestBulkUploadMultipartXLSXWithMapping() {
	data, err := template.RenderXLSX([][]string{
		{"Contractor", "Delivery Date", "Supplier Name", "Quantity"},
		{"BuildCorp Ltd.", "2024-03-01", "Holcim", "12"},
	})
	s.Require().NoError(err)

	want := []models.RawRow{{Contractor: "BuildCorp Ltd.", DeliveryDate: "2024-03-01", Supplier: "Holcim", Quantity: "12"}}
	s.service.EXPECT().Upload(gomock.Any(), s.projectID, want).
		Return(models.UploadResult{Success: true, InvalidDeliveries: 1}, nil)

	req := testutil.NewMultipartFormRequest(s.T(), http.MethodPost, s.base+"/deliveries/bulk",
		"file", "deliveries.xlsx", data, map[string]string{"mapping": `{"Supplier Name":"supplier"}`})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "invalidDeliveries", float64(1))
}

func (s *HandlerSuite) TestBulkUploadRejectsUnknownMappingColumn() {
	req := testutil.NewMultipartFormRequest(s.T(), http.MethodPost, s.base+"/deliveries/bulk",
		"file", "d.csv", []byte("Contractor,Quantity\nA,1\n"), map[string]string{"mapping": `{"X":"colour"}`})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "success", false)
}

func (s *HandlerSuite) TestBulkUploadWithoutHeader() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, s.base+"/deliveries/bulk", "text/csv", "a,b\n1,2\n")
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
	body := testutil.UnmarshalResponse[models.UploadResult](s.T(), rr)
	s.False(body.Success)
	s.Require().Len(body.Errors, 1)
	s.Contains(body.Errors[0], "no header row found")
}

func (s *HandlerSuite) TestBulkUploadReportsStoreFailure() {
	msg := "Failed to insert valid deliveries: connection reset"
	s.service.EXPECT().Upload(gomock.Any(), s.projectID, gomock.Any()).
		Return(models.FailedUpload(msg), dErrors.Wrap(errors.New("connection reset"), dErrors.CodeInternal, "Failed to insert valid deliveries"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.base+"/deliveries/bulk",
		map[string]any{"rows": []models.RawRow{s.row()}})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusInternalServerError, rr.Code)
	s.JSONEq(`{"success":false,"validDeliveries":0,"invalidDeliveries":0,"errors":["`+msg+`"]}`, rr.Body.String())
}

func (s *HandlerSuite) TestBulkUploadInvalidProjectID() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/projects/not-a-uuid/deliveries/bulk",
		map[string]any{"rows": []models.RawRow{}})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "success", false)
}

func (s *HandlerSuite) TestBulkUploadRejectsUnknownJSONFields() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, s.base+"/deliveries/bulk",
		"application/json", `{"rows":[],"extra":true}`)
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestPreview() {
	res := &service.PreviewResult{
		Valid: 1,
		Rows:  []service.PreviewRow{{Index: 0, Row: s.row(), Valid: true}},
	}
	s.service.EXPECT().Preview(gomock.Any(), s.projectID, []models.RawRow{s.row()}).Return(res, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.base+"/deliveries/preview",
		map[string]any{"rows": []models.RawRow{s.row()}})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "validDeliveries", float64(1))
}

func (s *HandlerSuite) TestLookupIsServedFromCacheAfterFirstLoad() {
	contractor := catalog.Contractor{ID: id.ContractorID(uuid.New()), Name: "BuildCorp Ltd."}
	s.loader.EXPECT().Load(gomock.Any(), s.projectID).Return(&catalog.Catalog{
		ProjectID:   s.projectID,
		Project:     &catalog.Project{ID: s.projectID, Name: "Harbour Tower"},
		Contractors: []catalog.Contractor{contractor},
	}, nil).Times(1)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.base+"/lookup"))
	s.Equal(http.StatusOK, rr.Code)
	s.Empty(rr.Header().Get("X-Cache"))
	body := testutil.UnmarshalResponse[LookupResponse](s.T(), rr)
	s.True(body.Success)
	s.Equal([]catalog.Contractor{contractor}, body.Contractors)
	s.NotNil(body.Units, "empty lists are arrays, not null")

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.base+"/lookup"))
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("hit", rr.Header().Get("X-Cache"))
}

func (s *HandlerSuite) TestLookupFailure() {
	s.loader.EXPECT().Load(gomock.Any(), s.projectID).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "catalog unavailable"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.base+"/lookup"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
}

func (s *HandlerSuite) TestTemplateCSV() {
	s.templates.EXPECT().CSV(gomock.Any(), s.projectID).Return("Project:,Harbour Tower\n", nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.base+"/deliveries/template"))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal("text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	s.Contains(rr.Header().Get("Content-Disposition"), "attachment")
	s.Contains(rr.Header().Get("Content-Disposition"), ".csv")
	s.Equal("Project:,Harbour Tower\n", rr.Body.String())
}

func (s *HandlerSuite) TestTemplateXLSX() {
	s.templates.EXPECT().XLSX(gomock.Any(), s.projectID).Return([]byte("PK"), nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.base+"/deliveries/template?format=XLSX"))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal(xlsxContentType, rr.Header().Get("Content-Type"))
	s.Contains(rr.Header().Get("Content-Disposition"), ".xlsx")
}

func (s *HandlerSuite) TestTemplateUnknownFormat() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.base+"/deliveries/template?format=pdf"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping(`{"Supplied By": "supplier", "Qty": "quantity"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["Qty"] != "quantity" {
		t.Fatalf("expected Qty mapped to quantity, got %q", m["Qty"])
	}

	if m, err := ParseMapping("  "); err != nil || m != nil {
		t.Fatalf("blank mapping should be nil, got %v %v", m, err)
	}
	if _, err := ParseMapping(`["supplier"]`); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad request for non-object mapping, got %v", err)
	}
}

// TestBulkUploadJSONKeepsEveryRow runs the real upload stack over in-memory
// stores: every posted row, blank or not, ends up as a delivery or a parked row.
func TestBulkUploadJSONKeepsEveryRow(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projectID := id.ProjectID(uuid.New())

	catalogStore := catalogstore.NewInMemory()
	catalogstore.DemoSeed(projectID).LoadInto(catalogStore)
	loader := catalogservice.New(catalogStore, catalogservice.WithLogger(logger))
	raws := ingeststore.NewInMemoryRawDeliveryStore()
	svc := service.New(loader, ingeststore.NewInMemoryDeliveryStore(), raws,
		carbon.NewCalculator(catalogStore), service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, loader, template.New(loader), logger).Register(r)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/projects/"+projectID.String()+"/deliveries/bulk",
		"application/json", `{"rows":[{"contractor":"X"},{},{}]}`)
	rr := testutil.DoRequest(r, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"validDeliveries":0,"invalidDeliveries":3}`, rr.Body.String())

	parked, err := raws.ListByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, parked, 3)
	blank := 0
	for _, p := range parked {
		if p.ContractorName == "" {
			blank++
			assert.Equal(t, []string{
				"Contractor is required",
				"Delivery date is required",
				"Design Package is required",
				"Material type is required",
				"Supplier is required",
				"Material is required",
				"Unit is required",
				"Valid quantity is required",
			}, p.ValidationErrors)
		}
	}
	assert.Equal(t, 2, blank)
}
