// Package models holds the delivery records produced by an upload.
package models

import (
	"time"

	id "sitecarbon/pkg/domain"
)

// DateLayout is the wire and storage format for delivery dates.
const DateLayout = "2006-01-02"

// Column describes one spreadsheet column. Key is the snake_case field name
// used by JSON uploads; Label is the canonical template header.
type Column struct {
	Key     string
	Label   string
	Aliases []string
}

// Columns lists the template columns in order.
var Columns = []Column{
	{Key: "contractor", Label: "Contractor"},
	{Key: "delivery_date", Label: "Delivery Date"},
	{Key: "design_package", Label: "Design Package"},
	{Key: "cost_code", Label: "Cost Code"},
	{Key: "docket_number", Label: "Docket Number"},
	{Key: "material_type", Label: "Material Type"},
	{Key: "supplier", Label: "Supplier", Aliases: []string{"Supplied By"}},
	{Key: "material", Label: "Material"},
	{Key: "unit", Label: "Unit", Aliases: []string{"Specific Unit"}},
	{Key: "quantity", Label: "Quantity"},
	{Key: "total_cost", Label: "Total Cost"},
	{Key: "material_description", Label: "Material Description"},
	{Key: "origin", Label: "Origin"},
}

// Labels returns the canonical header row.
func Labels() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Label
	}
	return out
}

// RawRow is one uploaded row exactly as supplied. Every field is text and may
// be empty.
type RawRow struct {
	Contractor          string `json:"contractor"`
	DeliveryDate        string `json:"delivery_date"`
	DesignPackage       string `json:"design_package"`
	CostCode            string `json:"cost_code"`
	DocketNumber        string `json:"docket_number"`
	MaterialType        string `json:"material_type"`
	Supplier            string `json:"supplier"`
	Material            string `json:"material"`
	Unit                string `json:"unit"`
	Quantity            string `json:"quantity"`
	TotalCost           string `json:"total_cost"`
	MaterialDescription string `json:"material_description"`
	Origin              string `json:"origin"`
}

// Set assigns a field by column key. Unknown keys are ignored.
func (r *RawRow) Set(key, value string) {
	switch key {
	case "contractor":
		r.Contractor = value
	case "delivery_date":
		r.DeliveryDate = value
	case "design_package":
		r.DesignPackage = value
	case "cost_code":
		r.CostCode = value
	case "docket_number":
		r.DocketNumber = value
	case "material_type":
		r.MaterialType = value
	case "supplier":
		r.Supplier = value
	case "material":
		r.Material = value
	case "unit":
		r.Unit = value
	case "quantity":
		r.Quantity = value
	case "total_cost":
		r.TotalCost = value
	case "material_description":
		r.MaterialDescription = value
	case "origin":
		r.Origin = value
	}
}

// Values returns the fields in column order.
func (r RawRow) Values() []string {
	return []string{
		r.Contractor, r.DeliveryDate, r.DesignPackage, r.CostCode, r.DocketNumber,
		r.MaterialType, r.Supplier, r.Material, r.Unit, r.Quantity, r.TotalCost,
		r.MaterialDescription, r.Origin,
	}
}

// IsBlank reports whether every field is empty.
func (r RawRow) IsBlank() bool {
	for _, v := range r.Values() {
		if v != "" {
			return false
		}
	}
	return true
}

// ResolvedIDs holds every reference a row resolved to. A nil pointer means
// the reference is unresolved.
type ResolvedIDs struct {
	ContractorID   *id.ContractorID   `json:"contractor_id,omitempty"`
	LocationID     *id.LocationID     `json:"location_id,omitempty"`
	CostCodeID     *id.CostCodeID     `json:"cost_code_id,omitempty"`
	MaterialTypeID *id.MaterialTypeID `json:"material_type_id,omitempty"`
	SupplierID     *id.SupplierID     `json:"supplier_id,omitempty"`
	MaterialID     *id.MaterialID     `json:"material_id,omitempty"`
	UnitID         *id.UnitID         `json:"unit_id,omitempty"`
}

// Delivery is a fully resolved delivery. It is immutable once persisted.
type Delivery struct {
	ID           id.DeliveryID     `json:"id"`
	ProjectID    id.ProjectID      `json:"project_id"`
	ContractorID id.ContractorID   `json:"contractor_id"`
	LocationID   id.LocationID     `json:"location_id"`
	CostCodeID   *id.CostCodeID    `json:"cost_code_id,omitempty"`
	MaterialID   id.MaterialID     `json:"material_id"`
	SupplierID   id.SupplierID     `json:"supplier_id"`
	UnitID       *id.UnitID        `json:"unit_id,omitempty"`
	DeliveryDate time.Time         `json:"delivery_date"`
	DocketNumber *string           `json:"docket_number,omitempty"`
	Quantity     float64           `json:"quantity"`
	TotalCost    *float64          `json:"total_cost,omitempty"`
	EmbodiedCO2  float64           `json:"embodied_co2"`
	SourceRawID  *id.RawDeliveryID `json:"source_raw_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// RawDelivery is a row parked for manual reconciliation. It keeps the text
// that was uploaded alongside whatever did resolve.
type RawDelivery struct {
	ID                  id.RawDeliveryID `json:"id"`
	ProjectID           id.ProjectID     `json:"project_id"`
	ContractorName      string           `json:"contractor_name"`
	DeliveryDate        string           `json:"delivery_date"`
	LocationName        string           `json:"location_name"`
	CostCodeName        string           `json:"cost_code_name"`
	DocketNumber        string           `json:"docket_number"`
	MaterialTypeName    string           `json:"material_type_name"`
	SupplierName        string           `json:"supplier_name"`
	MaterialName        string           `json:"material_name"`
	UnitName            string           `json:"unit_name"`
	Quantity            *float64         `json:"quantity,omitempty"`
	TotalCost           *float64         `json:"total_cost,omitempty"`
	MaterialDescription string           `json:"material_description"`
	OriginPostcode      string           `json:"origin_postcode"`
	ResolvedIDs
	ValidationErrors []string  `json:"validation_errors"`
	CreatedAt        time.Time `json:"created_at"`
}

// UploadResult is the outcome of one bulk upload.
type UploadResult struct {
	Success           bool     `json:"success"`
	ValidDeliveries   int      `json:"validDeliveries"`
	InvalidDeliveries int      `json:"invalidDeliveries"`
	Errors            []string `json:"errors,omitempty"`
}

// FailedUpload builds the result reported when an upload aborts.
func FailedUpload(msg string) UploadResult {
	return UploadResult{Success: false, Errors: []string{msg}}
}
