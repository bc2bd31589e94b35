package handler

import (
	catalog "sitecarbon/internal/catalog/models"
	"sitecarbon/internal/ingest/service"
)

// LookupResponse is the body of GET /projects/{projectID}/lookup.
type LookupResponse struct {
	Success        bool                    `json:"success"`
	Project        *catalog.Project        `json:"project,omitempty"`
	Contractors    []catalog.Contractor    `json:"contractors"`
	DesignPackages []catalog.DesignPackage `json:"designPackages"`
	CostCodes      []catalog.CostCode      `json:"costCodes"`
	MaterialTypes  []catalog.MaterialType  `json:"materialTypes"`
	Suppliers      []catalog.Supplier      `json:"suppliers"`
	Materials      []catalog.Material      `json:"materials"`
	Units          []catalog.Unit          `json:"units"`
	Unavailable    []catalog.Category      `json:"unavailable,omitempty"`
}

// FromCatalog converts a catalog snapshot. Lists are never null.
func FromCatalog(cat *catalog.Catalog) *LookupResponse {
	return &LookupResponse{
		Success:        true,
		Project:        cat.Project,
		Contractors:    nonNil(cat.Contractors),
		DesignPackages: nonNil(cat.DesignPackages),
		CostCodes:      nonNil(cat.CostCodes),
		MaterialTypes:  nonNil(cat.MaterialTypes),
		Suppliers:      nonNil(cat.Suppliers),
		Materials:      nonNil(cat.Materials),
		Units:          nonNil(cat.Units),
		Unavailable:    cat.UnavailableCategories(),
	}
}

// PreviewResponse is the body of POST /projects/{projectID}/deliveries/preview.
type PreviewResponse struct {
	Success bool `json:"success"`
	*service.PreviewResult
}

func FromPreview(res *service.PreviewResult) *PreviewResponse {
	if res.Rows == nil {
		res.Rows = []service.PreviewRow{}
	}
	return &PreviewResponse{Success: true, PreviewResult: res}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
