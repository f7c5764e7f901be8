package domain

import (
	"fmt"
	"net/url"
)

// ValidateListing checks the invariants a finished listing must hold.
func ValidateListing(l CanonicalListing) error {
	if l.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidListing)
	}
	if l.Year < MinModelYear || l.Year > MaxModelYear {
		return &RangeError{Field: "year", Value: l.Year, Min: MinModelYear, Max: MaxModelYear}
	}
	if l.Price < 0 || l.Mileage < 0 {
		return fmt.Errorf("%w: negative price or mileage", ErrInvalidListing)
	}
	if l.AccidentCount < 0 || l.OtherAccidentCount < 0 || l.AccidentCost < 0 || l.OtherAccidentCost < 0 {
		return fmt.Errorf("%w: negative accident figures", ErrInvalidListing)
	}
	if u, err := url.Parse(l.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: bad url %q", ErrInvalidListing, l.URL)
	}
	if l.Condition != DeriveCondition(l.AccidentCount, l.ReplacedParts) {
		return fmt.Errorf("%w: condition %q inconsistent", ErrInvalidListing, l.Condition)
	}
	return nil
}
