package rules

import (
	"github.com/shopspring/decimal"

	"quote-engine/core/types"
)

// ExclusionReason explains why a matching rule did not contribute
type ExclusionReason string

const (
	// ReasonConditionNotMet means the rule's condition evaluated to false
	ReasonConditionNotMet ExclusionReason = "condition_not_met"

	// ReasonConditionInvalid means the condition could not be evaluated
	ReasonConditionInvalid ExclusionReason = "condition_invalid"

	// ReasonInvalidRule means the rule itself is inconsistent
	ReasonInvalidRule ExclusionReason = "invalid_rule"
)

// Exclusion records a rule that was considered but not applied
type Exclusion struct {
	Rule   Rule            `json:"rule"`
	Reason ExclusionReason `json:"reason"`
	Detail string          `json:"detail,omitempty"`
}

// PriceBreakdown is the auditable result of aggregating a rule set
type PriceBreakdown struct {
	// ServiceType is the service the rules were filtered for
	ServiceType types.ServiceType `json:"serviceType"`

	// TotalPercentage is the signed sum of applied percent rules
	TotalPercentage decimal.Decimal `json:"totalPercentage"`

	// TotalFixed is the signed sum of applied fixed rules
	TotalFixed decimal.Decimal `json:"totalFixed"`

	// AppliedRules are the rules that contributed, in input order. A
	// minimum rule is listed last, and only once it has raised the price.
	AppliedRules []Rule `json:"appliedRules"`

	// NotApplied are matching rules excluded by their condition
	NotApplied []Exclusion `json:"notApplied,omitempty"`

	// MinimumPrice is the highest applicable minimum, if any
	MinimumPrice *decimal.Decimal `json:"minimumPrice,omitempty"`

	// MinimumRuleID identifies the rule that defined MinimumPrice
	MinimumRuleID string `json:"minimumRuleId,omitempty"`

	// MinimumApplied is set by the orchestrator when the floor was used
	MinimumApplied bool `json:"minimumApplied"`

	Warnings []types.Warning `json:"warnings,omitempty"`

	minimum *Rule
}

// ApplyMinimum marks the floor as used and lists its rule as applied
func (b *PriceBreakdown) ApplyMinimum() {
	if b.minimum == nil || b.MinimumApplied {
		return
	}
	b.MinimumApplied = true
	b.AppliedRules = append(b.AppliedRules, *b.minimum)
}

// WarningMessages returns the warning messages in order
func (b PriceBreakdown) WarningMessages() []string {
	out := make([]string, len(b.Warnings))
	for i, w := range b.Warnings {
		out[i] = w.Message
	}
	return out
}

// HasWarning reports whether a warning with code was raised
func (b PriceBreakdown) HasWarning(code types.WarningCode) bool {
	for _, w := range b.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Applied reports whether a rule id contributed to the totals
func (b PriceBreakdown) Applied(id string) bool {
	for _, r := range b.AppliedRules {
		if r.ID == id {
			return true
		}
	}
	return false
}
