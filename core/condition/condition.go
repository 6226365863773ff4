// Package condition provides the structured predicates that gate pricing
// rules. A predicate is one of a closed set of variants; payloads are
// decoded strictly so a malformed condition is rejected when rules are
// ingested, not discovered while pricing.
package condition

import (
	"bytes"
	"encoding/json"
	"fmt"

	"quote-engine/core/types"
)

// Kind is the variant tag of a predicate
type Kind string

const (
	KindDateRange Kind = "date_range"
	KindWeekday   Kind = "weekday"
	KindDistance  Kind = "distance"
	KindVolume    Kind = "volume"
	KindWorkers   Kind = "workers"
	KindOption    Kind = "option"
	KindAll       Kind = "all"
	KindAny       Kind = "any"
	KindNot       Kind = "not"
)

// maxDepth bounds composite nesting
const maxDepth = 16

// Predicate is implemented by every condition variant
type Predicate interface {
	// Kind returns the variant tag
	Kind() Kind

	// Describe returns a short human-readable rendering
	Describe() string

	eval(ctx types.PricingContext) bool
	validate(depth int) error
}

// Condition wraps a predicate. The zero Condition always holds.
type Condition struct {
	Predicate
}

// New wraps a predicate
func New(p Predicate) Condition {
	return Condition{Predicate: p}
}

// IsZero reports whether the condition is empty
func (c Condition) IsZero() bool {
	return c.Predicate == nil
}

// Validate checks the predicate tree
func (c Condition) Validate() error {
	return c.validateAt(0)
}

func (c Condition) validateAt(depth int) error {
	if c.Predicate == nil {
		return nil
	}
	if depth > maxDepth {
		return fmt.Errorf("condition nesting exceeds %d levels", maxDepth)
	}
	return c.Predicate.validate(depth)
}

// Evaluate reports whether the condition holds for ctx. An invalid
// predicate tree returns an error and is never considered satisfied.
func (c Condition) Evaluate(ctx types.PricingContext) (bool, error) {
	if c.Predicate == nil {
		return true, nil
	}
	if err := c.Validate(); err != nil {
		return false, err
	}
	return c.Predicate.eval(ctx), nil
}

// String describes the condition
func (c Condition) String() string {
	if c.Predicate == nil {
		return "always"
	}
	return c.Predicate.Describe()
}

// MarshalJSON renders the tagged form {"type": ..., fields...}
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Predicate == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(c.Predicate)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(c.Predicate.Kind())
	fields["type"] = tag
	return json.Marshal(fields)
}

// UnmarshalJSON decodes the tagged form. Unknown tags, unknown fields and
// structurally invalid predicates are errors.
func (c *Condition) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		c.Predicate = nil
		return nil
	}

	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("condition: %w", err)
	}

	var p Predicate
	var err error
	switch head.Type {
	case KindDateRange:
		var w struct {
			Type Kind `json:"type"`
			DateRange
		}
		err = decodeStrict(data, &w)
		p = w.DateRange
	case KindWeekday:
		var w struct {
			Type Kind `json:"type"`
			Weekday
		}
		err = decodeStrict(data, &w)
		p = w.Weekday
	case KindDistance:
		var w struct {
			Type Kind `json:"type"`
			DistanceThreshold
		}
		err = decodeStrict(data, &w)
		p = w.DistanceThreshold
	case KindVolume:
		var w struct {
			Type Kind `json:"type"`
			VolumeThreshold
		}
		err = decodeStrict(data, &w)
		p = w.VolumeThreshold
	case KindWorkers:
		var w struct {
			Type Kind `json:"type"`
			WorkersThreshold
		}
		err = decodeStrict(data, &w)
		p = w.WorkersThreshold
	case KindOption:
		var w struct {
			Type Kind `json:"type"`
			OptionSelected
		}
		err = decodeStrict(data, &w)
		p = w.OptionSelected
	case KindAll:
		var w struct {
			Type Kind `json:"type"`
			All
		}
		err = decodeStrict(data, &w)
		p = w.All
	case KindAny:
		var w struct {
			Type Kind `json:"type"`
			Any
		}
		err = decodeStrict(data, &w)
		p = w.Any
	case KindNot:
		var w struct {
			Type Kind `json:"type"`
			Not
		}
		err = decodeStrict(data, &w)
		p = w.Not
	case "":
		return fmt.Errorf("condition: missing type")
	default:
		return fmt.Errorf("condition: unknown type %q", head.Type)
	}
	if err != nil {
		return fmt.Errorf("condition %s: %w", head.Type, err)
	}

	parsed := Condition{Predicate: p}
	if err := parsed.Validate(); err != nil {
		return fmt.Errorf("condition %s: %w", head.Type, err)
	}
	*c = parsed
	return nil
}

// Parse decodes a condition payload. Empty input yields the zero condition.
func Parse(data []byte) (Condition, error) {
	var c Condition
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}
	err := json.Unmarshal(data, &c)
	return c, err
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
