package domain

import (
	"fmt"
	"math/rand/v2"
)

// SeedCatalog is the fixed inventory provisioned for every new dealership:
// exactly ten cars, one per entry. Registrations are filled in at
// provisioning time.
var SeedCatalog = []CarAttrs{
	{Model: "Uno", Manufacturer: "Fiat", Year: 2023},
	{Model: "Gol", Manufacturer: "Volkswagen", Year: 2023},
	{Model: "Celta", Manufacturer: "Chevrolet", Year: 2023},
	{Model: "Civic", Manufacturer: "Honda", Year: 2023},
	{Model: "Corolla", Manufacturer: "Toyota", Year: 2023},
	{Model: "HB20", Manufacturer: "Hyundai", Year: 2023},
	{Model: "Onix", Manufacturer: "Chevrolet", Year: 2023},
	{Model: "Argo", Manufacturer: "Fiat", Year: 2023},
	{Model: "T-Cross", Manufacturer: "Volkswagen", Year: 2023},
	{Model: "HR-V", Manufacturer: "Honda", Year: 2023},
}

// registrationPrefixes maps a manufacturer to its registration document
// prefix.
var registrationPrefixes = map[string]string{
	"Fiat":       "FT",
	"Volkswagen": "VW",
	"Chevrolet":  "CH",
	"Honda":      "HN",
	"Toyota":     "TY",
	"Hyundai":    "HY",
}

// RegistrationPrefix returns the document prefix for a manufacturer, or "XX"
// for manufacturers outside the catalog.
func RegistrationPrefix(manufacturer string) string {
	if p, ok := registrationPrefixes[manufacturer]; ok {
		return p
	}
	return "XX"
}

// NewRegistration produces a registration document number: the
// manufacturer's prefix plus a random nine-digit suffix.
func NewRegistration(manufacturer string) string {
	return fmt.Sprintf("%s-%09d", RegistrationPrefix(manufacturer), rand.N(1_000_000_000))
}
