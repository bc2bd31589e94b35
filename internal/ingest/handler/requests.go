package handler

import (
	"encoding/json"
	"strings"

	"sitecarbon/internal/ingest/models"
	dErrors "sitecarbon/pkg/domain-errors"
	"sitecarbon/pkg/platform/httputil"
)

// UploadRequest is the JSON body for bulk upload and preview. A single
// request carries at most 10000 rows.
type UploadRequest struct {
	Rows []models.RawRow `json:"rows" validate:"max=10000"`
}

// Validate implements request validation for uploads.
func (r *UploadRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return httputil.ValidateStruct(r)
}

// ParseMapping reads an optional column mapping: a JSON object from file
// header to field key, e.g. {"Supplier Name": "supplier"}.
func ParseMapping(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "mapping must be a JSON object of header to column key")
	}
	known := make(map[string]bool, len(models.Columns))
	for _, c := range models.Columns {
		known[c.Key] = true
	}
	for header, key := range m {
		if !known[key] {
			return nil, dErrors.New(dErrors.CodeValidation, "mapping for "+header+" names unknown column "+key)
		}
	}
	return m, nil
}
