package alerts

import "errors"

var (
	// ErrNotFound is returned when an alert does not exist.
	ErrNotFound = errors.New("alerts: not found")
	// ErrAlreadyResolved is returned when mutating a resolved alert.
	ErrAlreadyResolved = errors.New("alerts: already resolved")
	// ErrEmptyTenantID is returned when tenant id is missing.
	ErrEmptyTenantID = errors.New("alerts: empty tenant id")
	// ErrNilAlert is returned when persisting a nil alert.
	ErrNilAlert = errors.New("alerts: nil alert")
)
