package resolver

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	catalog "sitecarbon/internal/catalog/models"
	"sitecarbon/internal/ingest/models"
	id "sitecarbon/pkg/domain"
)

type ResolverSuite struct {
	suite.Suite
	projectID  id.ProjectID
	otherID    id.ProjectID
	cat        *catalog.Catalog
	contractor catalog.Contractor
	location   catalog.DesignPackage
	costCode   catalog.CostCode
	concrete   catalog.MaterialType
	steel      catalog.MaterialType
	holcim     catalog.Supplier
	boral      catalog.Supplier
	holcimMix  catalog.Material
	boralMix   catalog.Material
	cubic      catalog.Unit
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.projectID = id.ProjectID(uuid.New())
	s.otherID = id.ProjectID(uuid.New())
	s.contractor = catalog.Contractor{ID: id.ContractorID(uuid.New()), Name: "BuildCorp Ltd."}
	s.location = catalog.DesignPackage{ID: id.LocationID(uuid.New()), Name: "Foundation A", ProjectID: s.projectID}
	s.costCode = catalog.CostCode{ID: id.CostCodeID(uuid.New()), Name: "CC-100", ProjectID: s.projectID}
	s.concrete = catalog.MaterialType{ID: id.MaterialTypeID(uuid.New()), Name: "Concrete"}
	s.steel = catalog.MaterialType{ID: id.MaterialTypeID(uuid.New()), Name: "Steel"}
	s.holcim = catalog.Supplier{ID: id.SupplierID(uuid.New()), Name: "Holcim"}
	s.boral = catalog.Supplier{ID: id.SupplierID(uuid.New()), Name: "Boral"}
	s.holcimMix = catalog.Material{ID: id.MaterialID(uuid.New()), Name: "Concrete", SupplierID: s.holcim.ID, MaterialTypeID: s.concrete.ID}
	s.boralMix = catalog.Material{ID: id.MaterialID(uuid.New()), Name: "Concrete", SupplierID: s.boral.ID, MaterialTypeID: s.concrete.ID}
	s.cubic = catalog.Unit{ID: id.UnitID(uuid.New()), Name: "cubic metres", Symbol: "m³"}

	s.cat = &catalog.Catalog{
		ProjectID:      s.projectID,
		Contractors:    []catalog.Contractor{s.contractor},
		DesignPackages: []catalog.DesignPackage{s.location},
		CostCodes:      []catalog.CostCode{s.costCode},
		MaterialTypes:  []catalog.MaterialType{s.concrete, s.steel},
		Suppliers:      []catalog.Supplier{s.boral, s.holcim},
		Materials:      []catalog.Material{s.boralMix, s.holcimMix},
		Units:          []catalog.Unit{s.cubic},
	}
}

func (s *ResolverSuite) validRow() models.RawRow {
	return models.RawRow{
		Contractor:    "BuildCorp Ltd.",
		DeliveryDate:  "2024-01-15",
		DesignPackage: "Foundation A",
		CostCode:      "CC-100",
		DocketNumber:  "DOC-1",
		MaterialType:  "Concrete",
		Supplier:      "Holcim",
		Material:      "Concrete",
		Unit:          "m³",
		Quantity:      "125.5",
		TotalCost:     "15000",
	}
}

func (s *ResolverSuite) TestFullyResolvedRow() {
	res := Resolve(s.validRow(), s.cat, s.projectID)

	s.Require().True(res.OK(), "unexpected issues: %v", res.Errors())
	s.Nil(res.Errors())
	s.Equal(s.contractor.ID, *res.IDs.ContractorID)
	s.Equal(s.location.ID, *res.IDs.LocationID)
	s.Equal(s.costCode.ID, *res.IDs.CostCodeID)
	s.Equal(s.concrete.ID, *res.IDs.MaterialTypeID)
	s.Equal(s.holcim.ID, *res.IDs.SupplierID)
	s.Equal(s.holcimMix.ID, *res.IDs.MaterialID)
	s.Equal(s.cubic.ID, *res.IDs.UnitID)
	s.InDelta(125.5, *res.Quantity, 1e-9)
	s.InDelta(15000, *res.TotalCost, 1e-9)
	s.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *res.DeliveryDate)
}

func (s *ResolverSuite) TestContractorMatchIgnoresCase() {
	for _, name := range []string{"buildcorp ltd.", "BUILDCORP LTD.", "BuildCorp Ltd.", "  BuildCorp Ltd. "} {
		row := s.validRow()
		row.Contractor = name
		res := Resolve(row, s.cat, s.projectID)
		s.Require().True(res.OK(), name)
		s.Equal(s.contractor.ID, *res.IDs.ContractorID, name)
	}
}

func (s *ResolverSuite) TestDesignPackageScopedToProject() {
	res := Resolve(s.validRow(), s.cat, s.otherID)

	s.Nil(res.IDs.LocationID)
	s.Nil(res.IDs.CostCodeID)
	s.Contains(res.Errors(), `Design Package "Foundation A" not found for this project`)
	s.Contains(res.Errors(), `Cost code "CC-100" not found for this project`)
}

func (s *ResolverSuite) TestMaterialDisambiguatedBySupplier() {
	row := s.validRow()
	row.Supplier = "Boral"
	res := Resolve(row, s.cat, s.projectID)
	s.Require().True(res.OK())
	s.Equal(s.boralMix.ID, *res.IDs.MaterialID)

	row.Supplier = "holcim"
	res = Resolve(row, s.cat, s.projectID)
	s.Require().True(res.OK())
	s.Equal(s.holcimMix.ID, *res.IDs.MaterialID)
}

func (s *ResolverSuite) TestMaterialMustMatchResolvedType() {
	row := s.validRow()
	row.MaterialType = "Steel"
	res := Resolve(row, s.cat, s.projectID)

	s.Equal(s.steel.ID, *res.IDs.MaterialTypeID)
	s.Nil(res.IDs.MaterialID)
	s.Equal([]string{`Material "Concrete" not found or doesn't match supplier/type`}, res.Errors())
}

func (s *ResolverSuite) TestMaterialConstraintSkippedWhenSupplierUnresolved() {
	row := s.validRow()
	row.Supplier = "Nobody"
	res := Resolve(row, s.cat, s.projectID)

	s.Nil(res.IDs.SupplierID)
	s.Require().NotNil(res.IDs.MaterialID)
	// First catalog entry with the name wins once the supplier filter is off.
	s.Equal(s.boralMix.ID, *res.IDs.MaterialID)
	s.Equal([]string{`Supplier "Nobody" not found`}, res.Errors())
}

func (s *ResolverSuite) TestMissingFieldsReportedIndependently() {
	row := s.validRow()
	row.Contractor = ""
	row.Quantity = "lots"
	res := Resolve(row, s.cat, s.projectID)

	s.Equal([]string{"Contractor is required", "Valid quantity is required"}, res.Errors())
	s.Nil(res.Quantity)
	s.Nil(res.IDs.ContractorID)
	// Fields that did resolve are kept.
	s.NotNil(res.IDs.MaterialID)
}

func (s *ResolverSuite) TestEmptyRowListsEveryRequiredField() {
	res := Resolve(models.RawRow{}, s.cat, s.projectID)

	s.Equal([]string{
		"Contractor is required",
		"Delivery date is required",
		"Design Package is required",
		"Material type is required",
		"Supplier is required",
		"Material is required",
		"Unit is required",
		"Valid quantity is required",
	}, res.Errors())
	for _, is := range res.Issues {
		s.Equal(KindRequired, is.Kind)
	}
}

func (s *ResolverSuite) TestMatchAndPresenceErrorsAreIndependent() {
	row := s.validRow()
	row.Unit = "bags"
	row.Quantity = "NaN"
	res := Resolve(row, s.cat, s.projectID)

	s.Equal([]string{`Unit "bags" not found`, "Valid quantity is required"}, res.Errors())
	s.Equal(KindNotFound, res.Issues[0].Kind)
	s.Equal("unit", res.Issues[0].Field)
}

func (s *ResolverSuite) TestUnitMatchesNameOrSymbol() {
	for _, v := range []string{"cubic metres", "CUBIC METRES", "m³", "M³"} {
		row := s.validRow()
		row.Unit = v
		res := Resolve(row, s.cat, s.projectID)
		s.Require().True(res.OK(), v)
		s.Equal(s.cubic.ID, *res.IDs.UnitID, v)
	}
}

func (s *ResolverSuite) TestInvalidDateAndCost() {
	row := s.validRow()
	row.DeliveryDate = "next tuesday"
	row.TotalCost = "$15k"
	res := Resolve(row, s.cat, s.projectID)

	s.Equal([]string{
		`Delivery date "next tuesday" is not a valid date`,
		`Total cost "$15k" is not a valid number`,
	}, res.Errors())
	s.Nil(res.DeliveryDate)
	s.Nil(res.TotalCost)
}

func (s *ResolverSuite) TestOptionalFieldsMayBeEmpty() {
	row := s.validRow()
	row.CostCode = ""
	row.TotalCost = ""
	row.DocketNumber = ""
	res := Resolve(row, s.cat, s.projectID)

	s.True(res.OK())
	s.Nil(res.IDs.CostCodeID)
	s.Nil(res.TotalCost)
}

func (s *ResolverSuite) TestZeroQuantityIsValid() {
	row := s.validRow()
	row.Quantity = "0"
	res := Resolve(row, s.cat, s.projectID)

	s.True(res.OK())
	s.Zero(*res.Quantity)
}

func (s *ResolverSuite) TestIndexIsReusable() {
	ix := NewIndex(s.cat, s.projectID)
	a := ix.Resolve(s.validRow())
	b := ix.Resolve(models.RawRow{Contractor: "nobody"})

	s.True(a.OK())
	s.Contains(b.Errors(), `Contractor "nobody" not found`)
}

func TestFirstEntryWinsOnDuplicateNames(t *testing.T) {
	first := catalog.Contractor{ID: id.ContractorID(uuid.New()), Name: "Acme"}
	second := catalog.Contractor{ID: id.ContractorID(uuid.New()), Name: "ACME"}
	unitA := catalog.Unit{ID: id.UnitID(uuid.New()), Name: "tonne", Symbol: "t"}
	unitB := catalog.Unit{ID: id.UnitID(uuid.New()), Name: "t"}
	ix := NewIndex(&catalog.Catalog{
		Contractors: []catalog.Contractor{first, second},
		Units:       []catalog.Unit{unitA, unitB},
	}, id.ProjectID(uuid.New()))

	res := ix.Resolve(models.RawRow{Contractor: "acme", Unit: "T"})
	require.NotNil(t, res.IDs.ContractorID)
	assert.Equal(t, first.ID, *res.IDs.ContractorID)
	require.NotNil(t, res.IDs.UnitID)
	assert.Equal(t, unitA.ID, *res.IDs.UnitID)
}

func TestParseDate(t *testing.T) {
	jan15 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	may4 := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	apr13 := time.Date(2024, 4, 13, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15", jan15},
		{"2024/01/15", jan15},
		{"1/15/2024", jan15},
		{"01/15/2024", jan15},
		{"1-15-2024", jan15},
		{"01-15-24", jan15},
		{"1/15/24", jan15},
		{" 2024-01-15T09:30:00Z ", jan15},
		{"2024-01-15 09:30:00", jan15},
		// Ambiguous day/month: month first in every layout.
		{"05/04/2024", may4},
		{"05-04-2024", may4},
		{"05-04-24", may4},
		{"5/4/24", may4},
		{"4/13/2024", apr13},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseDate(tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, in := range []string{"", "tomorrow", "2024-13-01", "15/01/2024", "13-04-24", "32/01/2024", "1/32/2024"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, in)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"125.5", 125.5, true},
		{" 42 ", 42, true},
		{"1e3", 1000, true},
		{"-3", -3, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"1,250", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
