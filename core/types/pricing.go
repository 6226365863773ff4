// Package types - Pricing context and base constants
package types

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PricingContext carries the job attributes rule conditions are evaluated
// against. VolumeM3 is filled in by the orchestrator from the estimate.
type PricingContext struct {
	// Date is the scheduled job date
	Date time.Time `json:"date"`

	// DistanceKm is the travelled distance
	DistanceKm float64 `json:"distanceKm"`

	// Workers is the crew size
	Workers int `json:"workers"`

	// DurationHours is the planned job duration
	DurationHours float64 `json:"durationHours,omitempty"`

	// VolumeM3 is the estimated volume
	VolumeM3 float64 `json:"volumeM3,omitempty"`

	// Options are the add-ons selected by the customer (packing, storage...)
	Options []string `json:"options,omitempty"`
}

// HasOption reports whether an option was selected, ignoring case
func (c PricingContext) HasOption(name string) bool {
	for _, o := range c.Options {
		if strings.EqualFold(strings.TrimSpace(o), name) {
			return true
		}
	}
	return false
}

// BaseConstants are the linear base-price coefficients for one service type
type BaseConstants struct {
	// PricePerM3 is charged per estimated m³
	PricePerM3 decimal.Decimal `json:"pricePerM3"`

	// PricePerKm is charged per travelled km
	PricePerKm decimal.Decimal `json:"pricePerKm"`

	// PricePerWorker is charged once per crew member
	PricePerWorker decimal.Decimal `json:"pricePerWorker"`

	// PricePerHour is charged per worker-hour (zero disables it)
	PricePerHour decimal.Decimal `json:"pricePerHour"`

	// AddOns are flat prices for optional services keyed by option name
	AddOns map[string]decimal.Decimal `json:"addOns,omitempty"`
}

// AddOnNames returns the add-on names in sorted order
func (b BaseConstants) AddOnNames() []string {
	names := make([]string, 0, len(b.AddOns))
	for name := range b.AddOns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Negative returns the name of the first negative coefficient, or ""
func (b BaseConstants) Negative() string {
	switch {
	case b.PricePerM3.IsNegative():
		return "pricePerM3"
	case b.PricePerKm.IsNegative():
		return "pricePerKm"
	case b.PricePerWorker.IsNegative():
		return "pricePerWorker"
	case b.PricePerHour.IsNegative():
		return "pricePerHour"
	}
	for _, name := range b.AddOnNames() {
		if b.AddOns[name].IsNegative() {
			return "addOns." + name
		}
	}
	return ""
}
