package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sitecarbon/internal/catalog/models"
	"sitecarbon/internal/platform/postgres"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/platform/sentinel"
)

// PostgresStore reads reference tables from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	var p models.Project
	var pid uuid.UUID
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, name FROM projects WHERE id = $1`, uuid.UUID(projectID),
	).Scan(&pid, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	p.ID = id.ProjectID(pid)
	return &p, nil
}

func (s *PostgresStore) ListContractors(ctx context.Context) ([]models.Contractor, error) {
	return listNamed(ctx, s.db, "contractors",
		`SELECT id, name FROM contractors ORDER BY name, id`,
		func(uid uuid.UUID, name string) models.Contractor {
			return models.Contractor{ID: id.ContractorID(uid), Name: name}
		})
}

func (s *PostgresStore) ListDesignPackages(ctx context.Context, projectID id.ProjectID) ([]models.DesignPackage, error) {
	return listNamed(ctx, s.db, "design packages",
		`SELECT id, name FROM locations WHERE project_id = $1 ORDER BY name, id`,
		func(uid uuid.UUID, name string) models.DesignPackage {
			return models.DesignPackage{ID: id.LocationID(uid), Name: name, ProjectID: projectID}
		}, uuid.UUID(projectID))
}

func (s *PostgresStore) ListCostCodes(ctx context.Context, projectID id.ProjectID) ([]models.CostCode, error) {
	return listNamed(ctx, s.db, "cost codes",
		`SELECT id, name FROM cost_codes WHERE project_id = $1 ORDER BY name, id`,
		func(uid uuid.UUID, name string) models.CostCode {
			return models.CostCode{ID: id.CostCodeID(uid), Name: name, ProjectID: projectID}
		}, uuid.UUID(projectID))
}

func (s *PostgresStore) ListMaterialTypes(ctx context.Context) ([]models.MaterialType, error) {
	return listNamed(ctx, s.db, "material types",
		`SELECT id, name FROM material_types ORDER BY name, id`,
		func(uid uuid.UUID, name string) models.MaterialType {
			return models.MaterialType{ID: id.MaterialTypeID(uid), Name: name}
		})
}

func (s *PostgresStore) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return listNamed(ctx, s.db, "suppliers",
		`SELECT id, name FROM suppliers ORDER BY name, id`,
		func(uid uuid.UUID, name string) models.Supplier {
			return models.Supplier{ID: id.SupplierID(uid), Name: name}
		})
}

func (s *PostgresStore) ListMaterials(ctx context.Context) ([]models.Material, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT id, name, supplier_id, material_type_id FROM materials ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var out []models.Material
	for rows.Next() {
		var mid, sid, tid uuid.UUID
		var m models.Material
		if err := rows.Scan(&mid, &m.Name, &sid, &tid); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		m.ID = id.MaterialID(mid)
		m.SupplierID = id.SupplierID(sid)
		m.MaterialTypeID = id.MaterialTypeID(tid)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListUnits(ctx context.Context) ([]models.Unit, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT id, name, symbol FROM units ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var out []models.Unit
	for rows.Next() {
		var uid uuid.UUID
		var u models.Unit
		if err := rows.Scan(&uid, &u.Name, &u.Symbol); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u.ID = id.UnitID(uid)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return out, nil
}

// EmissionFactors fetches the embodied CO2 factor for a batch of materials in
// one query. Materials with a NULL factor are absent from the result.
func (s *PostgresStore) EmissionFactors(ctx context.Context, materialIDs []id.MaterialID) (map[id.MaterialID]float64, error) {
	out := make(map[id.MaterialID]float64, len(materialIDs))
	if len(materialIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(materialIDs))
	for i, mid := range materialIDs {
		ids[i] = mid.String()
	}

	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT id, embodied_co2_t_per_unit FROM materials
		 WHERE id = ANY($1::uuid[]) AND embodied_co2_t_per_unit IS NOT NULL`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load emission factors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mid uuid.UUID
		var factor float64
		if err := rows.Scan(&mid, &factor); err != nil {
			return nil, fmt.Errorf("scan emission factor: %w", err)
		}
		out[id.MaterialID(mid)] = factor
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load emission factors: %w", err)
	}
	return out, nil
}

func listNamed[T any](ctx context.Context, db *sql.DB, what, query string, build func(uuid.UUID, string) T, args ...any) ([]T, error) {
	rows, err := postgres.Conn(ctx, db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var uid uuid.UUID
		var name string
		if err := rows.Scan(&uid, &name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, build(uid, name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	return out, nil
}
