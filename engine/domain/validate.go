package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Tax id format: 000.000.000-00.
var taxIDRegex = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)

const (
	// MinCarYear is the oldest model year accepted.
	MinCarYear = 1950
)

// ValidateCar checks a car attribute payload. The registration may be empty
// when the caller will assign one (provisioning does).
func ValidateCar(a CarAttrs) error {
	if strings.TrimSpace(a.Model) == "" {
		return NewValidationError("model", a.Model, ErrEmptyField)
	}
	if strings.TrimSpace(a.Manufacturer) == "" {
		return NewValidationError("manufacturer", a.Manufacturer, ErrEmptyField)
	}
	if a.Year < MinCarYear || a.Year > time.Now().Year()+1 {
		return NewValidationError("year", fmt.Sprintf("%d", a.Year), ErrYearOutOfRange)
	}
	return nil
}

// ValidateCustomer checks a customer attribute payload.
func ValidateCustomer(a CustomerAttrs) error {
	if !taxIDRegex.MatchString(a.TaxID) {
		return NewValidationError("tax_id", a.TaxID, ErrInvalidTaxID)
	}
	if strings.TrimSpace(a.Name) == "" {
		return NewValidationError("name", a.Name, ErrEmptyField)
	}
	if a.BirthDate.IsZero() {
		return NewValidationError("birth_date", "", ErrEmptyField)
	}
	if a.BirthDate.After(time.Now()) {
		return NewValidationError("birth_date", a.BirthDate.Format(time.RFC3339), ErrBirthInFuture)
	}
	return nil
}

// ValidateDealership checks a dealership attribute payload.
func ValidateDealership(a DealershipAttrs) error {
	if strings.TrimSpace(a.Name) == "" {
		return NewValidationError("name", a.Name, ErrEmptyField)
	}
	return nil
}

// Validate dispatches to the kind-specific validator.
func Validate(a Attributes) error {
	switch v := a.(type) {
	case CarAttrs:
		return ValidateCar(v)
	case CustomerAttrs:
		return ValidateCustomer(v)
	case DealershipAttrs:
		return ValidateDealership(v)
	}
	return fmt.Errorf("%w: %T", ErrUnknownKind, a)
}
