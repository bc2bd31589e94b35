package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These describe the state of a stored record, not whether input was valid:
// - ErrNotFound: row does not exist in the store
// - ErrConflict: a unique key (docket, raw delivery promotion) already exists
// - ErrUnavailable: backing service (database, redis, broker) could not be reached
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
