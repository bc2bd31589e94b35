package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"sitecarbon/internal/catalog/models"
	"sitecarbon/internal/platform/postgres"
	id "sitecarbon/pkg/domain"
)

// SeedMaterial pairs a material with its emission factor.
type SeedMaterial struct {
	Material models.Material
	Factor   *float64
}

// Seed is a reference data set for one project.
type Seed struct {
	Project        models.Project
	Contractors    []models.Contractor
	DesignPackages []models.DesignPackage
	CostCodes      []models.CostCode
	MaterialTypes  []models.MaterialType
	Suppliers      []models.Supplier
	Materials      []SeedMaterial
	Units          []models.Unit
}

// DemoSeed builds a small but complete catalog so a fresh install can
// generate a template whose example row resolves.
func DemoSeed(projectID id.ProjectID) Seed {
	concrete := models.MaterialType{ID: id.MaterialTypeID(uuid.New()), Name: "Concrete"}
	steel := models.MaterialType{ID: id.MaterialTypeID(uuid.New()), Name: "Steel"}
	holcim := models.Supplier{ID: id.SupplierID(uuid.New()), Name: "Holcim"}
	bluescope := models.Supplier{ID: id.SupplierID(uuid.New()), Name: "BlueScope"}
	concreteFactor := 0.337
	rebarFactor := 1.99

	return Seed{
		Project:     models.Project{ID: projectID, Name: "Demo Project"},
		Contractors: []models.Contractor{{ID: id.ContractorID(uuid.New()), Name: "ABC Construction"}},
		DesignPackages: []models.DesignPackage{
			{ID: id.LocationID(uuid.New()), Name: "Foundations", ProjectID: projectID},
			{ID: id.LocationID(uuid.New()), Name: "Level 1 Slab", ProjectID: projectID},
		},
		CostCodes:     []models.CostCode{{ID: id.CostCodeID(uuid.New()), Name: "CC-100 Substructure", ProjectID: projectID}},
		MaterialTypes: []models.MaterialType{concrete, steel},
		Suppliers:     []models.Supplier{holcim, bluescope},
		Materials: []SeedMaterial{
			{Material: models.Material{ID: id.MaterialID(uuid.New()), Name: "32MPa Concrete", SupplierID: holcim.ID, MaterialTypeID: concrete.ID}, Factor: &concreteFactor},
			{Material: models.Material{ID: id.MaterialID(uuid.New()), Name: "Reinforcing Bar N12", SupplierID: bluescope.ID, MaterialTypeID: steel.ID}, Factor: &rebarFactor},
		},
		Units: []models.Unit{
			{ID: id.UnitID(uuid.New()), Name: "Cubic Metres", Symbol: "m3"},
			{ID: id.UnitID(uuid.New()), Name: "Tonnes", Symbol: "t"},
		},
	}
}

// LoadInto copies the seed into an in-memory store.
func (sd Seed) LoadInto(s *InMemory) {
	s.AddProject(sd.Project)
	for _, c := range sd.Contractors {
		s.AddContractor(c)
	}
	for _, d := range sd.DesignPackages {
		s.AddDesignPackage(d)
	}
	for _, c := range sd.CostCodes {
		s.AddCostCode(c)
	}
	for _, t := range sd.MaterialTypes {
		s.AddMaterialType(t)
	}
	for _, sup := range sd.Suppliers {
		s.AddSupplier(sup)
	}
	for _, m := range sd.Materials {
		s.AddMaterial(m.Material, m.Factor)
	}
	for _, u := range sd.Units {
		s.AddUnit(u)
	}
}

// Seed writes sd in one transaction. Rows that already exist are left alone.
func (s *PostgresStore) Seed(ctx context.Context, sd Seed) error {
	return postgres.NewTxRunner(s.db).RunInTx(ctx, func(ctx context.Context) error {
		conn := postgres.Conn(ctx, s.db)
		exec := func(what, query string, args ...any) error {
			if _, err := conn.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("seed %s: %w", what, err)
			}
			return nil
		}

		if err := exec("project", `INSERT INTO projects (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			uuid.UUID(sd.Project.ID), sd.Project.Name); err != nil {
			return err
		}
		for _, c := range sd.Contractors {
			if err := exec("contractor", `INSERT INTO contractors (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
				uuid.UUID(c.ID), c.Name); err != nil {
				return err
			}
		}
		for _, d := range sd.DesignPackages {
			if err := exec("design package", `INSERT INTO locations (id, project_id, name) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
				uuid.UUID(d.ID), uuid.UUID(d.ProjectID), d.Name); err != nil {
				return err
			}
		}
		for _, c := range sd.CostCodes {
			if err := exec("cost code", `INSERT INTO cost_codes (id, project_id, name) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
				uuid.UUID(c.ID), uuid.UUID(c.ProjectID), c.Name); err != nil {
				return err
			}
		}
		for _, t := range sd.MaterialTypes {
			if err := exec("material type", `INSERT INTO material_types (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
				uuid.UUID(t.ID), t.Name); err != nil {
				return err
			}
		}
		for _, sup := range sd.Suppliers {
			if err := exec("supplier", `INSERT INTO suppliers (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
				uuid.UUID(sup.ID), sup.Name); err != nil {
				return err
			}
		}
		for _, m := range sd.Materials {
			factor := sql.NullFloat64{}
			if m.Factor != nil {
				factor = sql.NullFloat64{Float64: *m.Factor, Valid: true}
			}
			if err := exec("material", `INSERT INTO materials (id, name, supplier_id, material_type_id, embodied_co2_t_per_unit)
				VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
				uuid.UUID(m.Material.ID), m.Material.Name, uuid.UUID(m.Material.SupplierID),
				uuid.UUID(m.Material.MaterialTypeID), factor); err != nil {
				return err
			}
		}
		for _, u := range sd.Units {
			if err := exec("unit", `INSERT INTO units (id, name, symbol) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
				uuid.UUID(u.ID), u.Name, u.Symbol); err != nil {
				return err
			}
		}
		return nil
	})
}
