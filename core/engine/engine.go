// Package engine is the pricing orchestrator. It combines the volume
// estimator, the base-price model and the rule aggregator into a quote.
//
// The engine holds no mutable state: every call is independent and may run
// concurrently without coordination.
package engine

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/core/volume"
	"quote-engine/internal/logging"
)

// Options are the orchestrator's pricing policies
type Options struct {
	// FloorAtZero raises negative final prices to zero
	FloorAtZero bool `json:"floor_at_zero" env:"FLOOR_AT_ZERO"`
}

// DefaultOptions returns the default policies
func DefaultOptions() Options {
	return Options{FloorAtZero: true}
}

// Engine computes volumes and quotes
type Engine struct {
	estimator  *volume.Estimator
	aggregator *rules.Aggregator
	opts       Options
	logger     *zap.Logger
}

// New creates an engine. A nil estimator or aggregator is replaced by the
// default one.
func New(estimator *volume.Estimator, aggregator *rules.Aggregator, opts Options, logger *zap.Logger) *Engine {
	logger = logging.Component(logger, "engine")
	if estimator == nil {
		estimator = volume.Default()
	}
	if aggregator == nil {
		aggregator = rules.NewAggregator(logger)
	}
	return &Engine{
		estimator:  estimator,
		aggregator: aggregator,
		opts:       opts,
		logger:     logger,
	}
}

// EstimateVolume returns the estimated volume in m³
func (e *Engine) EstimateVolume(in types.EstimationInput) (float64, error) {
	return e.estimator.Estimate(in)
}

// EstimateVolumeDetailed returns the estimate with its trace
func (e *Engine) EstimateVolumeDetailed(in types.EstimationInput) (volume.Detail, error) {
	return e.estimator.EstimateDetailed(in)
}

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// roundHalfUp rounds d to places decimals, ties toward +Inf
func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(half).Floor().Shift(-places)
}
