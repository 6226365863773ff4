package engine

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
)

// ComputeQuote prices one job.
//
//  1. estimate the volume (invalid input aborts with INVALID_INPUT)
//  2. baseCost = volume*pricePerM3 + distance*pricePerKm + workers*pricePerWorker
//     (+ worker-hours*pricePerHour, + selected flat add-ons)
//  3. aggregate the rules of serviceType against ctx
//  4. finalPrice = baseCost + baseCost*totalPercentage/100 + totalFixed,
//     floored at zero and at the applicable minimum, rounded half-up to 2dp
//
// rs is treated as a read-only snapshot.
func (e *Engine) ComputeQuote(
	in types.EstimationInput,
	rs []rules.Rule,
	serviceType types.ServiceType,
	ctx types.PricingContext,
	constants types.BaseConstants,
) (Quote, error) {
	if !serviceType.IsValid() {
		return Quote{}, errors.InvalidInput("serviceType", "serviceType must be one of MOVING, CLEANING, DELIVERY, PACKING (got %q)", serviceType)
	}
	if err := validateContext(ctx); err != nil {
		return Quote{}, err
	}
	if field := constants.Negative(); field != "" {
		return Quote{}, errors.Newf(errors.TypeConfig, "base constant %s must not be negative", field)
	}

	detail, err := e.estimator.EstimateDetailed(in)
	if err != nil {
		return Quote{}, err
	}
	ctx.VolumeM3 = detail.Volume

	q := Quote{
		ServiceType:  serviceType,
		Volume:       detail.Volume,
		VolumeDetail: detail,
		Lines:        baseLines(detail.Volume, ctx, constants),
		BaseCost:     decimal.Zero,
	}
	for _, l := range q.Lines {
		q.BaseCost = q.BaseCost.Add(l.Amount)
	}

	q.Breakdown = e.aggregator.Aggregate(rs, serviceType, ctx)
	q.PercentageAdjustment = roundHalfUp(q.BaseCost.Mul(q.Breakdown.TotalPercentage).Div(hundred), 2)
	q.FixedAdjustment = roundHalfUp(q.Breakdown.TotalFixed, 2)

	final := q.BaseCost.Add(q.PercentageAdjustment).Add(q.FixedAdjustment)

	if e.opts.FloorAtZero && final.IsNegative() {
		q.Breakdown.Warnings = append(q.Breakdown.Warnings, types.Warning{
			Code:    types.WarnFlooredAtZero,
			Message: fmt.Sprintf("computed price %s raised to 0", final.StringFixed(2)),
		})
		final = decimal.Zero
	}
	if minimum := q.Breakdown.MinimumPrice; minimum != nil && final.LessThan(*minimum) {
		q.Breakdown.Warnings = append(q.Breakdown.Warnings, types.Warning{
			Code:    types.WarnMinimumApplied,
			RuleID:  q.Breakdown.MinimumRuleID,
			Message: fmt.Sprintf("computed price %s raised to minimum %s", final.StringFixed(2), minimum.StringFixed(2)),
		})
		final = *minimum
		q.Breakdown.ApplyMinimum()
	}
	q.FinalPrice = roundHalfUp(final, 2)

	e.logger.Debug("quote computed",
		zap.String("service_type", serviceType.String()),
		zap.Float64("volume", q.Volume),
		zap.String("base_cost", q.BaseCost.String()),
		zap.String("final_price", q.FinalPrice.String()),
		zap.Int("applied_rules", len(q.Breakdown.AppliedRules)),
		zap.Int("warnings", len(q.Breakdown.Warnings)))

	return q, nil
}

func validateContext(ctx types.PricingContext) error {
	switch {
	case math.IsNaN(ctx.DistanceKm) || math.IsInf(ctx.DistanceKm, 0):
		return errors.InvalidInput("distanceKm", "distanceKm must be a number")
	case ctx.DistanceKm < 0:
		return errors.InvalidInput("distanceKm", "distanceKm must not be negative")
	case ctx.Workers < 0:
		return errors.InvalidInput("workers", "workers must not be negative")
	case math.IsNaN(ctx.DurationHours) || math.IsInf(ctx.DurationHours, 0):
		return errors.InvalidInput("durationHours", "durationHours must be a number")
	case ctx.DurationHours < 0:
		return errors.InvalidInput("durationHours", "durationHours must not be negative")
	}
	return nil
}

func baseLines(volumeM3 float64, ctx types.PricingContext, c types.BaseConstants) []Line {
	workers := decimal.NewFromInt(int64(ctx.Workers))
	lines := []Line{
		newLine(LineVolume, "volume (m³)", decimal.NewFromFloat(volumeM3), c.PricePerM3),
		newLine(LineDistance, "distance (km)", decimal.NewFromFloat(ctx.DistanceKm), c.PricePerKm),
		newLine(LineWorkers, "workers", workers, c.PricePerWorker),
	}
	if !c.PricePerHour.IsZero() {
		hours := workers.Mul(decimal.NewFromFloat(ctx.DurationHours))
		lines = append(lines, newLine(LineHours, "worker-hours", hours, c.PricePerHour))
	}
	for _, name := range c.AddOnNames() {
		if ctx.HasOption(name) {
			lines = append(lines, newLine(LineAddOn, name, decimal.NewFromInt(1), c.AddOns[name]))
		}
	}
	return lines
}

func newLine(kind LineKind, label string, qty, rate decimal.Decimal) Line {
	return Line{
		Kind:     kind,
		Label:    label,
		Quantity: qty,
		Rate:     rate,
		Amount:   roundHalfUp(qty.Mul(rate), 2),
	}
}
