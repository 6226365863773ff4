// Package rules turns configured business rules into price adjustments.
// Rules are point-in-time snapshots handed over by the configuration
// gateway; this package never mutates them.
package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"quote-engine/core/condition"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
)

// Rule is a persisted, versioned pricing directive.
//
// Value is signed as authored: percent rules use +10 for a 10% increase
// and -15 for a 15% discount; fixed rules carry an absolute currency delta.
type Rule struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Value        decimal.Decimal     `json:"value"`
	PercentBased bool                `json:"percentBased"`
	Category     types.Category      `json:"category"`
	ServiceType  types.ServiceType   `json:"serviceType"`
	Condition    condition.Condition `json:"condition"`
	IsActive     bool                `json:"isActive"`
	Version      int                 `json:"version,omitempty"`
}

// Key is the store key of the rule (category + name)
func (r Rule) Key() string {
	return string(r.Category) + "/" + r.Name
}

// IsMinimum reports whether the rule is a price floor
func (r Rule) IsMinimum() bool {
	return r.Category == types.CategoryMinimum && !r.PercentBased
}

var percentFloor = decimal.NewFromInt(-100)

// Validate enforces the sign convention and structural requirements at
// ingestion time. Signs are never inferred from the category.
func Validate(r Rule) error {
	id := r.ID
	if strings.TrimSpace(id) == "" {
		return errors.InvalidRule(r.Name, "rule id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.InvalidRule(id, "rule %s: name is required", id)
	}
	if !r.Category.IsValid() {
		return errors.InvalidRule(id, "rule %s: unknown category %q", id, r.Category)
	}
	if !r.ServiceType.IsValid() {
		return errors.InvalidRule(id, "rule %s: unknown service type %q", id, r.ServiceType)
	}

	switch r.Category {
	case types.CategoryDiscount:
		if !r.Value.IsNegative() {
			return errors.InvalidRule(id, "rule %s: discount value must be negative, got %s", id, r.Value)
		}
	case types.CategorySurcharge:
		if r.Value.IsNegative() {
			return errors.InvalidRule(id, "rule %s: surcharge value must not be negative, got %s", id, r.Value)
		}
	case types.CategoryMinimum:
		if r.PercentBased {
			return errors.InvalidRule(id, "rule %s: minimum rules must be fixed amounts", id)
		}
		if !r.Value.IsPositive() {
			return errors.InvalidRule(id, "rule %s: minimum value must be positive, got %s", id, r.Value)
		}
	}
	if r.PercentBased && r.Value.LessThan(percentFloor) {
		return errors.InvalidRule(id, "rule %s: percentage %s is below -100", id, r.Value)
	}
	if err := r.Condition.Validate(); err != nil {
		return errors.InvalidRule(id, "rule %s: %v", id, err)
	}
	return nil
}

// ValidateSet splits rules into valid ones and rejections, keeping order.
// Duplicate IDs after the first occurrence are rejected.
func ValidateSet(rs []Rule) ([]Rule, []error) {
	valid := make([]Rule, 0, len(rs))
	var rejected []error
	seen := make(map[string]bool, len(rs))

	for _, r := range rs {
		if err := Validate(r); err != nil {
			rejected = append(rejected, err)
			continue
		}
		if seen[r.ID] {
			rejected = append(rejected, errors.InvalidRule(r.ID, "rule %s: duplicate id", r.ID))
			continue
		}
		seen[r.ID] = true
		valid = append(valid, r)
	}
	return valid, rejected
}
