// Package domain holds the typed identifiers shared across contexts.
//
// Every identifier is a distinct named UUID so a contractor id can never be
// passed where a supplier id is expected. Parse functions are the trust
// boundary: they reject empty, malformed and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "sitecarbon/pkg/domain-errors"
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}

func unmarshalUUID(dst *uuid.UUID, text []byte, label string) error {
	u, err := parseUUID(string(text), label)
	if err != nil {
		return err
	}
	*dst = u
	return nil
}

type ProjectID uuid.UUID

// ParseProjectID parses a project ID at a trust boundary.
func ParseProjectID(s string) (ProjectID, error) {
	u, err := parseUUID(s, "project ID")
	return ProjectID(u), err
}

func (id ProjectID) String() string { return uuid.UUID(id).String() }
func (id ProjectID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ProjectID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ProjectID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "project ID")
}

type ContractorID uuid.UUID

// ParseContractorID parses a contractor ID at a trust boundary.
func ParseContractorID(s string) (ContractorID, error) {
	u, err := parseUUID(s, "contractor ID")
	return ContractorID(u), err
}

func (id ContractorID) String() string { return uuid.UUID(id).String() }
func (id ContractorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ContractorID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ContractorID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "contractor ID")
}

type LocationID uuid.UUID

// ParseLocationID parses a location ID at a trust boundary.
func ParseLocationID(s string) (LocationID, error) {
	u, err := parseUUID(s, "location ID")
	return LocationID(u), err
}

func (id LocationID) String() string { return uuid.UUID(id).String() }
func (id LocationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id LocationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *LocationID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "location ID")
}

type CostCodeID uuid.UUID

// ParseCostCodeID parses a cost code ID at a trust boundary.
func ParseCostCodeID(s string) (CostCodeID, error) {
	u, err := parseUUID(s, "cost code ID")
	return CostCodeID(u), err
}

func (id CostCodeID) String() string { return uuid.UUID(id).String() }
func (id CostCodeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id CostCodeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CostCodeID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "cost code ID")
}

type MaterialTypeID uuid.UUID

// ParseMaterialTypeID parses a material type ID at a trust boundary.
func ParseMaterialTypeID(s string) (MaterialTypeID, error) {
	u, err := parseUUID(s, "material type ID")
	return MaterialTypeID(u), err
}

func (id MaterialTypeID) String() string { return uuid.UUID(id).String() }
func (id MaterialTypeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id MaterialTypeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *MaterialTypeID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "material type ID")
}

type SupplierID uuid.UUID

// ParseSupplierID parses a supplier ID at a trust boundary.
func ParseSupplierID(s string) (SupplierID, error) {
	u, err := parseUUID(s, "supplier ID")
	return SupplierID(u), err
}

func (id SupplierID) String() string { return uuid.UUID(id).String() }
func (id SupplierID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id SupplierID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SupplierID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "supplier ID")
}

type MaterialID uuid.UUID

// ParseMaterialID parses a material ID at a trust boundary.
func ParseMaterialID(s string) (MaterialID, error) {
	u, err := parseUUID(s, "material ID")
	return MaterialID(u), err
}

func (id MaterialID) String() string { return uuid.UUID(id).String() }
func (id MaterialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id MaterialID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *MaterialID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "material ID")
}

type UnitID uuid.UUID

// ParseUnitID parses a unit ID at a trust boundary.
func ParseUnitID(s string) (UnitID, error) {
	u, err := parseUUID(s, "unit ID")
	return UnitID(u), err
}

func (id UnitID) String() string { return uuid.UUID(id).String() }
func (id UnitID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UnitID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UnitID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "unit ID")
}

type DeliveryID uuid.UUID

// ParseDeliveryID parses a delivery ID at a trust boundary.
func ParseDeliveryID(s string) (DeliveryID, error) {
	u, err := parseUUID(s, "delivery ID")
	return DeliveryID(u), err
}

func (id DeliveryID) String() string { return uuid.UUID(id).String() }
func (id DeliveryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id DeliveryID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *DeliveryID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "delivery ID")
}

type RawDeliveryID uuid.UUID

// ParseRawDeliveryID parses a raw delivery ID at a trust boundary.
func ParseRawDeliveryID(s string) (RawDeliveryID, error) {
	u, err := parseUUID(s, "raw delivery ID")
	return RawDeliveryID(u), err
}

func (id RawDeliveryID) String() string { return uuid.UUID(id).String() }
func (id RawDeliveryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id RawDeliveryID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *RawDeliveryID) UnmarshalText(text []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), text, "raw delivery ID")
}
