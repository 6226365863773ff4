// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions and
// enum parsing.
package types

import "strings"

// ServiceType scopes which rules and base constants apply to a job
type ServiceType string

const (
	ServiceMoving   ServiceType = "MOVING"
	ServiceCleaning ServiceType = "CLEANING"
	ServiceDelivery ServiceType = "DELIVERY"
	ServicePacking  ServiceType = "PACKING"
)

// String returns the string representation of the service type
func (s ServiceType) String() string {
	return string(s)
}

// IsValid checks if the service type is known
func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceMoving, ServiceCleaning, ServiceDelivery, ServicePacking:
		return true
	default:
		return false
	}
}

// ParseServiceType parses a service type case-insensitively
func ParseServiceType(s string) (ServiceType, bool) {
	st := ServiceType(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// AllServiceTypes lists every known service type in a stable order
func AllServiceTypes() []ServiceType {
	return []ServiceType{ServiceMoving, ServiceCleaning, ServiceDelivery, ServicePacking}
}

// Category classifies a pricing rule
type Category string

const (
	// CategoryMinimum rules floor the final price instead of adjusting it
	CategoryMinimum   Category = "MINIMUM"
	CategoryFixed     Category = "FIXED"
	CategorySurcharge Category = "SURCHARGE"
	CategoryDiscount  Category = "DISCOUNT"
	CategorySeasonal  Category = "SEASONAL"
	CategoryOption    Category = "OPTION"
)

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the category is known
func (c Category) IsValid() bool {
	switch c {
	case CategoryMinimum, CategoryFixed, CategorySurcharge, CategoryDiscount, CategorySeasonal, CategoryOption:
		return true
	default:
		return false
	}
}

// ParseCategory parses a category case-insensitively
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.IsValid()
}
