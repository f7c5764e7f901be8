package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Accepted model-year bounds.
const (
	MinModelYear = 2018
	MaxModelYear = 2024
)

// PriceScale converts the source's price unit (10,000 KRW) to KRW.
const PriceScale = 10000

// priceScaleDigits is log10(PriceScale).
const priceScaleDigits = 4

// DecodeYear turns the source's YYYYMM form into a year and range-checks it.
func DecodeYear(encoded int) (int, error) {
	if encoded < 0 {
		return 0, &RangeError{Field: "year", Value: encoded, Min: MinModelYear, Max: MaxModelYear}
	}
	year := encoded / 100
	if year < MinModelYear || year > MaxModelYear {
		return 0, &RangeError{Field: "year", Value: year, Min: MinModelYear, Max: MaxModelYear}
	}
	return year, nil
}

// EncodeYearRange renders a year range in the search API's YYYY00..YYYY99 form.
func EncodeYearRange(from, to int) (string, string) {
	return fmt.Sprintf("%d00", from), fmt.Sprintf("%d99", to)
}

var errNumberSyntax = errors.New("not a decimal number")

// NormalizePrice multiplies a decimal string by PriceScale without going
// through floating point. Fractions finer than 1 KRW are rejected.
func NormalizePrice(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &FieldError{Field: "price", Value: raw, Err: errNumberSyntax}
	}
	whole, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	if whole == "" || len(frac) > priceScaleDigits || !allDigits(whole) || !allDigits(frac) {
		return 0, &FieldError{Field: "price", Value: raw, Err: errNumberSyntax}
	}
	digits := whole + frac + strings.Repeat("0", priceScaleDigits-len(frac))
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, &FieldError{Field: "price", Value: raw, Err: err}
	}
	return v, nil
}

// ParseCount parses a non-negative integer field such as mileage. Values
// carrying a zero fraction ("50000.0") are accepted.
func ParseCount(field, raw string) (int, error) {
	s := strings.TrimSpace(raw)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) || strings.Trim(frac, "0") != "" {
		return 0, &FieldError{Field: field, Value: raw, Err: errNumberSyntax}
	}
	v, err := strconv.Atoi(whole)
	if err != nil {
		return 0, &FieldError{Field: field, Value: raw, Err: err}
	}
	return v, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
