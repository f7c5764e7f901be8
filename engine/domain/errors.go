package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// classify with errors.Is.
var (
	ErrTransientFetch      = errors.New("transient fetch failure")
	ErrUnmappedToken       = errors.New("unmapped token")
	ErrOutOfRange          = errors.New("value out of range")
	ErrMalformedField      = errors.New("malformed field")
	ErrUnrecognizedCode    = errors.New("unrecognized diagnosis code")
	ErrMalformedInspection = errors.New("malformed inspection")
	ErrNoListings          = errors.New("no listings survived normalization")
	ErrInvalidListing      = errors.New("invalid listing")
)

// TransientFetchError records a detail document that could not be retrieved.
// The document is treated as absent.
type TransientFetchError struct {
	Listing  string
	Document string
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s: %v", e.Document, e.Listing, e.Err)
}

func (e *TransientFetchError) Unwrap() []error { return []error{ErrTransientFetch, e.Err} }

// MappingError is a source token missing from a translation table.
type MappingError struct {
	Table string
	Token string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping: %s has no entry for %q", e.Table, e.Token)
}

func (e *MappingError) Unwrap() error { return ErrUnmappedToken }

// RangeError is a decoded value outside its accepted bounds.
type RangeError struct {
	Field    string
	Value    int
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range: %s=%d outside [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// FieldError is a raw field that could not be parsed at all.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() []error { return []error{ErrMalformedField, e.Err} }

// UnrecognizedDiagnosisCode is a diagnosis item whose code is neither normal
// nor replacement.
type UnrecognizedDiagnosisCode struct {
	Item string
	Code string
}

func (e *UnrecognizedDiagnosisCode) Error() string {
	return fmt.Sprintf("diagnosis: item %s has unrecognized code %q", e.Item, e.Code)
}

func (e *UnrecognizedDiagnosisCode) Unwrap() error { return ErrUnrecognizedCode }

// ListingError ties a per-listing failure to the listing it dropped.
type ListingError struct {
	ID  string
	Err error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing %s: %v", e.ID, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

// Reason classifies a drop for reporting and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnmappedToken):
		return "mapping"
	case errors.Is(err, ErrOutOfRange):
		return "range"
	case errors.Is(err, ErrUnrecognizedCode):
		return "diagnosis_code"
	case errors.Is(err, ErrMalformedField):
		return "malformed"
	case errors.Is(err, ErrInvalidListing):
		return "invalid"
	default:
		return "other"
	}
}
