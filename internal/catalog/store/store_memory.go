package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"sitecarbon/internal/catalog/models"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/platform/sentinel"
)

// InMemory keeps reference tables in process. It backs local runs without a
// database and the service tests.
type InMemory struct {
	mu             sync.RWMutex
	projects       map[id.ProjectID]models.Project
	contractors    []models.Contractor
	designPackages []models.DesignPackage
	costCodes      []models.CostCode
	materialTypes  []models.MaterialType
	suppliers      []models.Supplier
	materials      []models.Material
	units          []models.Unit
	factors        map[id.MaterialID]float64
}

func NewInMemory() *InMemory {
	return &InMemory{
		projects: make(map[id.ProjectID]models.Project),
		factors:  make(map[id.MaterialID]float64),
	}
}

func (s *InMemory) AddProject(p models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *InMemory) AddContractor(c models.Contractor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contractors = append(s.contractors, c)
}

func (s *InMemory) AddDesignPackage(d models.DesignPackage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.designPackages = append(s.designPackages, d)
}

func (s *InMemory) AddCostCode(c models.CostCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costCodes = append(s.costCodes, c)
}

func (s *InMemory) AddMaterialType(t models.MaterialType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materialTypes = append(s.materialTypes, t)
}

func (s *InMemory) AddSupplier(sup models.Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers = append(s.suppliers, sup)
}

// AddMaterial registers a material. factor is its embodied CO2 in tonnes per
// unit; nil leaves the material without a factor.
func (s *InMemory) AddMaterial(m models.Material, factor *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials = append(s.materials, m)
	if factor != nil {
		s.factors[m.ID] = *factor
	}
}

func (s *InMemory) AddUnit(u models.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append(s.units, u)
}

func (s *InMemory) FindProject(_ context.Context, projectID id.ProjectID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemory) ListContractors(_ context.Context) ([]models.Contractor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.contractors, func(c models.Contractor) string { return c.Name }), nil
}

func (s *InMemory) ListDesignPackages(_ context.Context, projectID id.ProjectID) ([]models.DesignPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DesignPackage
	for _, d := range s.designPackages {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return sortedByName(out, func(d models.DesignPackage) string { return d.Name }), nil
}

func (s *InMemory) ListCostCodes(_ context.Context, projectID id.ProjectID) ([]models.CostCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CostCode
	for _, c := range s.costCodes {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return sortedByName(out, func(c models.CostCode) string { return c.Name }), nil
}

func (s *InMemory) ListMaterialTypes(_ context.Context) ([]models.MaterialType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.materialTypes, func(t models.MaterialType) string { return t.Name }), nil
}

func (s *InMemory) ListSuppliers(_ context.Context) ([]models.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.suppliers, func(sup models.Supplier) string { return sup.Name }), nil
}

func (s *InMemory) ListMaterials(_ context.Context) ([]models.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.materials, func(m models.Material) string { return m.Name }), nil
}

func (s *InMemory) ListUnits(_ context.Context) ([]models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.units, func(u models.Unit) string { return u.Name }), nil
}

// EmissionFactors returns the stored factor for each known material. Materials
// without a factor are absent from the result.
func (s *InMemory) EmissionFactors(_ context.Context, materialIDs []id.MaterialID) (map[id.MaterialID]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.MaterialID]float64, len(materialIDs))
	for _, mid := range materialIDs {
		if f, ok := s.factors[mid]; ok {
			out[mid] = f
		}
	}
	return out, nil
}

// sortedByName copies items and orders them by name. The sort is stable so
// equal names keep insertion order.
func sortedByName[T any](items []T, name func(T) string) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		return cmp.Compare(strings.ToLower(name(a)), strings.ToLower(name(b)))
	})
	return out
}
