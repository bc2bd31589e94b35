// Package models holds the per-project reference catalog that uploads are
// resolved against.
package models

import (
	id "sitecarbon/pkg/domain"
)

// Category names one reference list in the catalog.
type Category string

const (
	CategoryContractors    Category = "contractors"
	CategoryDesignPackages Category = "design_packages"
	CategoryCostCodes      Category = "cost_codes"
	CategoryMaterialTypes  Category = "material_types"
	CategorySuppliers      Category = "suppliers"
	CategoryMaterials      Category = "materials"
	CategoryUnits          Category = "units"
	CategoryProject        Category = "project"
)

// Categories lists the reference lists in template order.
var Categories = []Category{
	CategoryContractors,
	CategoryDesignPackages,
	CategoryCostCodes,
	CategoryMaterialTypes,
	CategorySuppliers,
	CategoryMaterials,
	CategoryUnits,
}

type Project struct {
	ID   id.ProjectID `json:"id"`
	Name string       `json:"name"`
}

type Contractor struct {
	ID   id.ContractorID `json:"id"`
	Name string          `json:"name"`
}

// DesignPackage is a project location. Names only match within their project.
type DesignPackage struct {
	ID        id.LocationID `json:"id"`
	Name      string        `json:"name"`
	ProjectID id.ProjectID  `json:"project_id"`
}

// CostCode is scoped to a project like DesignPackage.
type CostCode struct {
	ID        id.CostCodeID `json:"id"`
	Name      string        `json:"name"`
	ProjectID id.ProjectID  `json:"project_id"`
}

type MaterialType struct {
	ID   id.MaterialTypeID `json:"id"`
	Name string            `json:"name"`
}

type Supplier struct {
	ID   id.SupplierID `json:"id"`
	Name string        `json:"name"`
}

// Material belongs to exactly one supplier and one material type.
type Material struct {
	ID             id.MaterialID     `json:"id"`
	Name           string            `json:"name"`
	SupplierID     id.SupplierID     `json:"supplier_id"`
	MaterialTypeID id.MaterialTypeID `json:"material_type_id"`
}

// Unit matches on either Name or Symbol.
type Unit struct {
	ID     id.UnitID `json:"id"`
	Name   string    `json:"name"`
	Symbol string    `json:"symbol"`
}

// Label renders a unit for guidance rows.
func (u Unit) Label() string {
	if u.Symbol == "" {
		return u.Name
	}
	return u.Name + " (" + u.Symbol + ")"
}

// Catalog is the transient snapshot loaded for one upload or template.
// Unavailable records categories whose fetch failed; such a category is empty
// but not known to be empty.
type Catalog struct {
	ProjectID      id.ProjectID
	Project        *Project
	Contractors    []Contractor
	DesignPackages []DesignPackage
	CostCodes      []CostCode
	MaterialTypes  []MaterialType
	Suppliers      []Supplier
	Materials      []Material
	Units          []Unit
	Unavailable    map[Category]error
}

// Len returns the number of entries in a category.
func (c *Catalog) Len(cat Category) int {
	switch cat {
	case CategoryContractors:
		return len(c.Contractors)
	case CategoryDesignPackages:
		return len(c.DesignPackages)
	case CategoryCostCodes:
		return len(c.CostCodes)
	case CategoryMaterialTypes:
		return len(c.MaterialTypes)
	case CategorySuppliers:
		return len(c.Suppliers)
	case CategoryMaterials:
		return len(c.Materials)
	case CategoryUnits:
		return len(c.Units)
	case CategoryProject:
		if c.Project != nil {
			return 1
		}
	}
	return 0
}

// Complete reports whether every reference list has at least one entry.
func (c *Catalog) Complete() bool {
	for _, cat := range Categories {
		if c.Len(cat) == 0 {
			return false
		}
	}
	return true
}

// IsAvailable reports whether cat was fetched successfully.
func (c *Catalog) IsAvailable(cat Category) bool {
	_, failed := c.Unavailable[cat]
	return !failed
}

// UnavailableCategories returns the failed categories in template order.
func (c *Catalog) UnavailableCategories() []Category {
	var out []Category
	for _, cat := range Categories {
		if !c.IsAvailable(cat) {
			out = append(out, cat)
		}
	}
	if !c.IsAvailable(CategoryProject) {
		out = append(out, CategoryProject)
	}
	return out
}

// ProjectName returns the project's name or a generic label when the project
// could not be found.
func (c *Catalog) ProjectName() string {
	if c.Project == nil || c.Project.Name == "" {
		return "Project"
	}
	return c.Project.Name
}
