package handler

import (
	"strings"

	"github.com/google/uuid"

	"sitecarbon/internal/reconcile/service"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/platform/httputil"
)

// ResolveRequest carries the operator's picks for a raw delivery. Omitted
// ids keep whatever the upload resolved.
type ResolveRequest struct {
	ContractorID string `json:"contractor_id" validate:"omitempty,uuid"`
	LocationID   string `json:"location_id" validate:"omitempty,uuid"`
	CostCodeID   string `json:"cost_code_id" validate:"omitempty,uuid"`
	MaterialID   string `json:"material_id" validate:"omitempty,uuid"`
	SupplierID   string `json:"supplier_id" validate:"omitempty,uuid"`
	UnitID       string `json:"unit_id" validate:"omitempty,uuid"`
	DeliveryDate string `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
}

// Normalize trims whitespace from every field.
func (r *ResolveRequest) Normalize() {
	r.ContractorID = strings.TrimSpace(r.ContractorID)
	r.LocationID = strings.TrimSpace(r.LocationID)
	r.CostCodeID = strings.TrimSpace(r.CostCodeID)
	r.MaterialID = strings.TrimSpace(r.MaterialID)
	r.SupplierID = strings.TrimSpace(r.SupplierID)
	r.UnitID = strings.TrimSpace(r.UnitID)
	r.DeliveryDate = strings.TrimSpace(r.DeliveryDate)
}

func (r *ResolveRequest) Validate() error {
	return httputil.ValidateStruct(r)
}

// Resolution converts a validated request into service input.
func (r *ResolveRequest) Resolution() service.Resolution {
	return service.Resolution{
		ContractorID: optional[id.ContractorID](r.ContractorID),
		LocationID:   optional[id.LocationID](r.LocationID),
		CostCodeID:   optional[id.CostCodeID](r.CostCodeID),
		MaterialID:   optional[id.MaterialID](r.MaterialID),
		SupplierID:   optional[id.SupplierID](r.SupplierID),
		UnitID:       optional[id.UnitID](r.UnitID),
		DeliveryDate: r.DeliveryDate,
	}
}

// optional expects s to be empty or a UUID already checked by Validate.
func optional[T ~[16]byte](s string) *T {
	if s == "" {
		return nil
	}
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return nil
	}
	v := T(u)
	return &v
}
