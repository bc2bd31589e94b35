package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sitecarbon/internal/catalog/metrics"
	"sitecarbon/internal/catalog/models"
	"sitecarbon/internal/catalog/service/mocks"
	id "sitecarbon/pkg/domain"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/platform/sentinel"
)

// =============================================================================
// Catalog Loader Test Suite
// =============================================================================
// Justification for unit tests: the loader's fail-soft contract (a failed list
// is empty and flagged, never fatal) is awkward to provoke against a real
// database.

type LoaderSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	metrics   *metrics.Metrics
	loader    *Loader
	projectID id.ProjectID
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.projectID = id.ProjectID(uuid.New())
	s.loader = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
}

func (s *LoaderSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *LoaderSuite) expectAll() {
	s.store.EXPECT().FindProject(gomock.Any(), s.projectID).
		Return(&models.Project{ID: s.projectID, Name: "Harbour Tower"}, nil)
	s.store.EXPECT().ListContractors(gomock.Any()).
		Return([]models.Contractor{{ID: id.ContractorID(uuid.New()), Name: "Acme"}}, nil)
	s.store.EXPECT().ListDesignPackages(gomock.Any(), s.projectID).
		Return([]models.DesignPackage{{ID: id.LocationID(uuid.New()), Name: "Block A", ProjectID: s.projectID}}, nil)
	s.store.EXPECT().ListCostCodes(gomock.Any(), s.projectID).
		Return([]models.CostCode{{ID: id.CostCodeID(uuid.New()), Name: "CC-1", ProjectID: s.projectID}}, nil)
	s.store.EXPECT().ListMaterialTypes(gomock.Any()).
		Return([]models.MaterialType{{ID: id.MaterialTypeID(uuid.New()), Name: "Concrete"}}, nil)
	s.store.EXPECT().ListSuppliers(gomock.Any()).
		Return([]models.Supplier{{ID: id.SupplierID(uuid.New()), Name: "Holcim"}}, nil)
	s.store.EXPECT().ListMaterials(gomock.Any()).
		Return([]models.Material{{ID: id.MaterialID(uuid.New()), Name: "C32"}}, nil)
	s.store.EXPECT().ListUnits(gomock.Any()).
		Return([]models.Unit{{ID: id.UnitID(uuid.New()), Name: "Tonne", Symbol: "t"}}, nil)
}

func (s *LoaderSuite) TestLoadsEveryCategory() {
	s.expectAll()

	cat, err := s.loader.Load(context.Background(), s.projectID)
	s.Require().NoError(err)
	s.Equal(s.projectID, cat.ProjectID)
	s.Equal("Harbour Tower", cat.ProjectName())
	s.True(cat.Complete())
	s.Empty(cat.Unavailable)
}

func (s *LoaderSuite) TestFailedCategoryIsEmptyAndFlagged() {
	boom := errors.New("connection reset")
	s.store.EXPECT().FindProject(gomock.Any(), s.projectID).Return(&models.Project{ID: s.projectID, Name: "P"}, nil)
	s.store.EXPECT().ListContractors(gomock.Any()).Return([]models.Contractor{{Name: "Acme"}}, nil)
	s.store.EXPECT().ListDesignPackages(gomock.Any(), s.projectID).Return(nil, nil)
	s.store.EXPECT().ListCostCodes(gomock.Any(), s.projectID).Return(nil, nil)
	s.store.EXPECT().ListMaterialTypes(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListSuppliers(gomock.Any()).Return(nil, boom)
	s.store.EXPECT().ListMaterials(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListUnits(gomock.Any()).Return([]models.Unit{{Name: "Tonne"}}, nil)

	cat, err := s.loader.Load(context.Background(), s.projectID)
	s.Require().NoError(err)

	s.Empty(cat.Suppliers)
	s.False(cat.IsAvailable(models.CategorySuppliers))
	s.ErrorIs(cat.Unavailable[models.CategorySuppliers], boom)

	// Empty but fetched categories are not flagged.
	s.True(cat.IsAvailable(models.CategoryDesignPackages))
	s.Len(cat.Contractors, 1)
	s.Len(cat.Units, 1)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.FetchFailures.WithLabelValues(string(models.CategorySuppliers))))
}

func (s *LoaderSuite) TestMissingProjectIsNotAnError() {
	s.store.EXPECT().FindProject(gomock.Any(), s.projectID).Return(nil, sentinel.ErrNotFound)
	s.store.EXPECT().ListContractors(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListDesignPackages(gomock.Any(), s.projectID).Return(nil, nil)
	s.store.EXPECT().ListCostCodes(gomock.Any(), s.projectID).Return(nil, nil)
	s.store.EXPECT().ListMaterialTypes(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListSuppliers(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListMaterials(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListUnits(gomock.Any()).Return(nil, nil)

	cat, err := s.loader.Load(context.Background(), s.projectID)
	s.Require().NoError(err)
	s.Nil(cat.Project)
	s.True(cat.IsAvailable(models.CategoryProject))
	s.Equal("Project", cat.ProjectName())
}

func (s *LoaderSuite) TestProjectFetchFailureLeavesProjectNil() {
	s.store.EXPECT().FindProject(gomock.Any(), s.projectID).Return(nil, errors.New("timeout"))
	s.store.EXPECT().ListContractors(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListDesignPackages(gomock.Any(), s.projectID).Return(nil, nil)
	s.store.EXPECT().ListCostCodes(gomock.Any(), s.projectID).Return(nil, nil)
	s.store.EXPECT().ListMaterialTypes(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListSuppliers(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListMaterials(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().ListUnits(gomock.Any()).Return(nil, nil)

	cat, err := s.loader.Load(context.Background(), s.projectID)
	s.Require().NoError(err)
	s.Nil(cat.Project)
	s.False(cat.IsAvailable(models.CategoryProject))
}

func (s *LoaderSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.loader.Load(ctx, s.projectID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *LoaderSuite) TestNilMetricsAndDefaults() {
	s.expectAll()
	loader := New(s.store)
	cat, err := loader.Load(context.Background(), s.projectID)
	s.Require().NoError(err)
	s.True(cat.Complete())
}
