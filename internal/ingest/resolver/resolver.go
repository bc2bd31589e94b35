// Package resolver matches the free-text references in an uploaded row
// against the project's reference catalog.
//
// Matching is exact after case folding and trimming surrounding whitespace.
// Each field is checked independently, so a row reports every problem at once.
package resolver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	catalog "sitecarbon/internal/catalog/models"
	"sitecarbon/internal/ingest/models"
	id "sitecarbon/pkg/domain"
)

// IssueKind classifies why a field failed.
type IssueKind string

const (
	KindNotFound IssueKind = "not_found"
	KindRequired IssueKind = "required"
	KindInvalid  IssueKind = "invalid"
)

// Issue is one validation problem on one field. Message is the operator-facing
// text stored with the parked row.
type Issue struct {
	Field   string    `json:"field"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is the outcome of resolving one row.
type Result struct {
	Row          models.RawRow
	Issues       []Issue
	IDs          models.ResolvedIDs
	Quantity     *float64
	TotalCost    *float64
	DeliveryDate *time.Time
}

// OK reports whether the row resolved completely.
func (r Result) OK() bool {
	return len(r.Issues) == 0
}

// Errors returns the issue messages in the order they were found.
func (r Result) Errors() []string {
	if len(r.Issues) == 0 {
		return nil
	}
	out := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		out[i] = is.Message
	}
	return out
}

// Index is a case-folded lookup over one catalog, scoped to one project.
// Build it once per upload and share it across rows; it is read-only after
// construction and safe for concurrent use.
type Index struct {
	projectID      id.ProjectID
	contractors    map[string]id.ContractorID
	designPackages map[string]id.LocationID
	costCodes      map[string]id.CostCodeID
	materialTypes  map[string]id.MaterialTypeID
	suppliers      map[string]id.SupplierID
	materials      map[string][]catalog.Material
	units          map[string]id.UnitID
}

// NewIndex builds the lookup tables. Where two entries share a name the one
// listed first in the catalog wins.
func NewIndex(cat *catalog.Catalog, projectID id.ProjectID) *Index {
	ix := &Index{
		projectID:      projectID,
		contractors:    make(map[string]id.ContractorID, len(cat.Contractors)),
		designPackages: make(map[string]id.LocationID, len(cat.DesignPackages)),
		costCodes:      make(map[string]id.CostCodeID, len(cat.CostCodes)),
		materialTypes:  make(map[string]id.MaterialTypeID, len(cat.MaterialTypes)),
		suppliers:      make(map[string]id.SupplierID, len(cat.Suppliers)),
		materials:      make(map[string][]catalog.Material, len(cat.Materials)),
		units:          make(map[string]id.UnitID, 2*len(cat.Units)),
	}
	for _, c := range cat.Contractors {
		putFirst(ix.contractors, c.Name, c.ID)
	}
	for _, d := range cat.DesignPackages {
		if d.ProjectID == projectID {
			putFirst(ix.designPackages, d.Name, d.ID)
		}
	}
	for _, c := range cat.CostCodes {
		if c.ProjectID == projectID {
			putFirst(ix.costCodes, c.Name, c.ID)
		}
	}
	for _, t := range cat.MaterialTypes {
		putFirst(ix.materialTypes, t.Name, t.ID)
	}
	for _, s := range cat.Suppliers {
		putFirst(ix.suppliers, s.Name, s.ID)
	}
	for _, m := range cat.Materials {
		if k := fold(m.Name); k != "" {
			ix.materials[k] = append(ix.materials[k], m)
		}
	}
	for _, u := range cat.Units {
		putFirst(ix.units, u.Name, u.ID)
		putFirst(ix.units, u.Symbol, u.ID)
	}
	return ix
}

// Resolve is a convenience for resolving a single row.
func Resolve(row models.RawRow, cat *catalog.Catalog, projectID id.ProjectID) Result {
	return NewIndex(cat, projectID).Resolve(row)
}

// Resolve checks every field of row. It never stops at the first problem.
func (ix *Index) Resolve(row models.RawRow) Result {
	res := Result{Row: row}
	add := func(field string, kind IssueKind, msg string) {
		res.Issues = append(res.Issues, Issue{Field: field, Kind: kind, Message: msg})
	}

	contractor := strings.TrimSpace(row.Contractor)
	designPackage := strings.TrimSpace(row.DesignPackage)
	costCode := strings.TrimSpace(row.CostCode)
	materialType := strings.TrimSpace(row.MaterialType)
	supplier := strings.TrimSpace(row.Supplier)
	material := strings.TrimSpace(row.Material)
	unit := strings.TrimSpace(row.Unit)
	deliveryDate := strings.TrimSpace(row.DeliveryDate)
	quantity := strings.TrimSpace(row.Quantity)
	totalCost := strings.TrimSpace(row.TotalCost)

	if contractor != "" {
		if v, ok := ix.contractors[fold(contractor)]; ok {
			res.IDs.ContractorID = &v
		} else {
			add("contractor", KindNotFound, fmt.Sprintf("Contractor %q not found", contractor))
		}
	}

	if designPackage != "" {
		if v, ok := ix.designPackages[fold(designPackage)]; ok {
			res.IDs.LocationID = &v
		} else {
			add("design_package", KindNotFound, fmt.Sprintf("Design Package %q not found for this project", designPackage))
		}
	}

	if costCode != "" {
		if v, ok := ix.costCodes[fold(costCode)]; ok {
			res.IDs.CostCodeID = &v
		} else {
			add("cost_code", KindNotFound, fmt.Sprintf("Cost code %q not found for this project", costCode))
		}
	}

	if materialType != "" {
		if v, ok := ix.materialTypes[fold(materialType)]; ok {
			res.IDs.MaterialTypeID = &v
		} else {
			add("material_type", KindNotFound, fmt.Sprintf("Material type %q not found", materialType))
		}
	}

	if supplier != "" {
		if v, ok := ix.suppliers[fold(supplier)]; ok {
			res.IDs.SupplierID = &v
		} else {
			add("supplier", KindNotFound, fmt.Sprintf("Supplier %q not found", supplier))
		}
	}

	if material != "" {
		if m, ok := ix.matchMaterial(material, res.IDs.SupplierID, res.IDs.MaterialTypeID); ok {
			res.IDs.MaterialID = &m
		} else {
			add("material", KindNotFound, fmt.Sprintf("Material %q not found or doesn't match supplier/type", material))
		}
	}

	if unit != "" {
		if v, ok := ix.units[fold(unit)]; ok {
			res.IDs.UnitID = &v
		} else {
			add("unit", KindNotFound, fmt.Sprintf("Unit %q not found", unit))
		}
	}

	if deliveryDate != "" {
		if d, ok := ParseDate(deliveryDate); ok {
			res.DeliveryDate = &d
		} else {
			add("delivery_date", KindInvalid, fmt.Sprintf("Delivery date %q is not a valid date", deliveryDate))
		}
	}

	if totalCost != "" {
		if v, ok := ParseNumber(totalCost); ok {
			res.TotalCost = &v
		} else {
			add("total_cost", KindInvalid, fmt.Sprintf("Total cost %q is not a valid number", totalCost))
		}
	}

	if quantity != "" {
		if v, ok := ParseNumber(quantity); ok {
			res.Quantity = &v
		}
	}

	if contractor == "" {
		add("contractor", KindRequired, "Contractor is required")
	}
	if deliveryDate == "" {
		add("delivery_date", KindRequired, "Delivery date is required")
	}
	if designPackage == "" {
		add("design_package", KindRequired, "Design Package is required")
	}
	if materialType == "" {
		add("material_type", KindRequired, "Material type is required")
	}
	if supplier == "" {
		add("supplier", KindRequired, "Supplier is required")
	}
	if material == "" {
		add("material", KindRequired, "Material is required")
	}
	if unit == "" {
		add("unit", KindRequired, "Unit is required")
	}
	if res.Quantity == nil {
		add("quantity", KindRequired, "Valid quantity is required")
	}

	return res
}

// matchMaterial finds a material by name that also belongs to the supplier
// and material type when those are known.
func (ix *Index) matchMaterial(name string, supplierID *id.SupplierID, typeID *id.MaterialTypeID) (id.MaterialID, bool) {
	for _, m := range ix.materials[fold(name)] {
		if supplierID != nil && m.SupplierID != *supplierID {
			continue
		}
		if typeID != nil && m.MaterialTypeID != *typeID {
			continue
		}
		return m.ID, true
	}
	return id.MaterialID{}, false
}

// Slash and dash dates are month first, as US spreadsheets and excelize's
// default date cell format ("01-02-06") render them.
var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"1-2-06",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate accepts ISO dates plus month-first slash and dash dates with two
// or four digit years. Time of day is dropped.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a finite decimal number.
func ParseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func putFirst[V any](m map[string]V, name string, v V) {
	k := fold(name)
	if k == "" {
		return
	}
	if _, exists := m[k]; !exists {
		m[k] = v
	}
}
