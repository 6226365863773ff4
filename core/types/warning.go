// Package types - Non-fatal warnings attached to breakdowns and quotes
package types

import "fmt"

// WarningCode identifies the kind of warning
type WarningCode string

const (
	// WarnPercentageAbove50 flags an unusually high percentage total
	WarnPercentageAbove50 WarningCode = "PERCENTAGE_ABOVE_50"

	// WarnPercentageAbove100 flags a percentage total that more than doubles the price
	WarnPercentageAbove100 WarningCode = "PERCENTAGE_ABOVE_100"

	// WarnRuleEvaluation flags a rule whose condition could not be evaluated
	WarnRuleEvaluation WarningCode = "RULE_EVALUATION"

	// WarnMinimumApplied flags a final price raised to the minimum
	WarnMinimumApplied WarningCode = "MINIMUM_APPLIED"

	// WarnFlooredAtZero flags a negative price raised to zero
	WarnFlooredAtZero WarningCode = "FLOORED_AT_ZERO"
)

// Warning is an informational finding. It never blocks quote generation.
type Warning struct {
	Code    WarningCode `json:"code"`
	RuleID  string      `json:"ruleId,omitempty"`
	Message string      `json:"message"`
}

// String returns a one-line rendering
func (w Warning) String() string {
	if w.RuleID != "" {
		return fmt.Sprintf("%s [%s]: %s", w.Code, w.RuleID, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
