package rules

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quote-engine/core/types"
	"quote-engine/internal/logging"
)

var (
	// SoftPercentageLimit raises PERCENTAGE_ABOVE_50 when exceeded
	SoftPercentageLimit = decimal.NewFromInt(50)

	// HardPercentageLimit raises PERCENTAGE_ABOVE_100 when exceeded
	HardPercentageLimit = decimal.NewFromInt(100)
)

// Aggregator sums the percent and fixed adjustments of a rule set. It
// surfaces suspicious totals as warnings and never clamps them.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates an aggregator; logger may be nil
func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logging.Component(logger, "rules")}
}

// Aggregate filters rs to active rules of serviceType, evaluates their
// conditions against ctx and accumulates the applied values.
//
// Rules for other service types and inactive rules are dropped without
// trace. Rules whose condition fails or cannot be evaluated are recorded
// in NotApplied.
func (a *Aggregator) Aggregate(rs []Rule, serviceType types.ServiceType, ctx types.PricingContext) PriceBreakdown {
	b := PriceBreakdown{
		ServiceType:     serviceType,
		TotalPercentage: decimal.Zero,
		TotalFixed:      decimal.Zero,
		AppliedRules:    []Rule{},
	}

	var percent, fixed []Rule
	for _, r := range rs {
		if !r.IsActive || r.ServiceType != serviceType {
			continue
		}
		if r.Category == types.CategoryMinimum && r.PercentBased {
			b.exclude(r, ReasonInvalidRule, "minimum rules must be fixed amounts")
			continue
		}

		ok, err := r.Condition.Evaluate(ctx)
		if err != nil {
			a.logger.Warn("rule condition could not be evaluated",
				zap.String("rule_id", r.ID),
				zap.String("service_type", serviceType.String()),
				zap.Error(err))
			b.exclude(r, ReasonConditionInvalid, err.Error())
			b.Warnings = append(b.Warnings, types.Warning{
				Code:    types.WarnRuleEvaluation,
				RuleID:  r.ID,
				Message: "condition could not be evaluated: " + err.Error(),
			})
			continue
		}
		if !ok {
			b.exclude(r, ReasonConditionNotMet, r.Condition.String())
			continue
		}

		switch {
		case r.IsMinimum():
			b.offerMinimum(r)
		case r.PercentBased:
			percent = append(percent, r)
		default:
			fixed = append(fixed, r)
		}
	}

	for _, r := range percent {
		b.TotalPercentage = b.TotalPercentage.Add(r.Value)
	}
	for _, r := range fixed {
		b.TotalFixed = b.TotalFixed.Add(r.Value)
	}
	b.AppliedRules = append(b.AppliedRules, percent...)
	b.AppliedRules = append(b.AppliedRules, fixed...)

	if b.TotalPercentage.GreaterThan(SoftPercentageLimit) {
		b.Warnings = append(b.Warnings, types.Warning{
			Code:    types.WarnPercentageAbove50,
			Message: "totalPercentage > 50",
		})
	}
	if b.TotalPercentage.GreaterThan(HardPercentageLimit) {
		b.Warnings = append(b.Warnings, types.Warning{
			Code:    types.WarnPercentageAbove100,
			Message: "totalPercentage > 100",
		})
	}
	return b
}

func (b *PriceBreakdown) exclude(r Rule, reason ExclusionReason, detail string) {
	b.NotApplied = append(b.NotApplied, Exclusion{Rule: r, Reason: reason, Detail: detail})
}

// offerMinimum keeps the highest applicable floor; ties keep the first rule
func (b *PriceBreakdown) offerMinimum(r Rule) {
	if b.MinimumPrice != nil && !r.Value.GreaterThan(*b.MinimumPrice) {
		return
	}
	v := r.Value
	b.MinimumPrice = &v
	b.MinimumRuleID = r.ID
	b.minimum = &r
}
