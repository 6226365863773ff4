// Package engine - Quote types
package engine

import (
	"github.com/shopspring/decimal"

	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/core/volume"
)

// LineKind identifies a base cost line
type LineKind string

const (
	LineVolume   LineKind = "volume"
	LineDistance LineKind = "distance"
	LineWorkers  LineKind = "workers"
	LineHours    LineKind = "hours"
	LineAddOn    LineKind = "add_on"
)

// Line is one itemised component of the base cost
type Line struct {
	Kind     LineKind        `json:"kind"`
	Label    string          `json:"label"`
	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

// Quote is the final orchestrator output. Every amount is rounded to
// currency precision and the lines add up exactly:
// FinalPrice = BaseCost + PercentageAdjustment + FixedAdjustment,
// unless a floor (zero or minimum) replaced the sum.
type Quote struct {
	ServiceType types.ServiceType `json:"serviceType"`

	// Volume is the estimated volume in m³
	Volume float64 `json:"volume"`

	// VolumeDetail is the estimator trace
	VolumeDetail volume.Detail `json:"volumeDetail"`

	// Lines are the itemised base cost components
	Lines []Line `json:"lines"`

	BaseCost             decimal.Decimal `json:"baseCost"`
	PercentageAdjustment decimal.Decimal `json:"percentageAdjustment"`
	FixedAdjustment      decimal.Decimal `json:"fixedAdjustment"`
	FinalPrice           decimal.Decimal `json:"finalPrice"`

	Breakdown rules.PriceBreakdown `json:"breakdown"`
}
