package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"quote-engine/core/types"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day
type Date struct {
	t time.Time
}

// NewDate builds a Date
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// DateOf truncates t to its calendar date in t's own location
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool { return d.t.IsZero() }

// String renders YYYY-MM-DD
func (d Date) String() string { return d.t.Format(dateLayout) }

// Before reports whether d is strictly before o
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// MarshalJSON renders the date as a string
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses a YYYY-MM-DD string
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) monthDay() int { return int(d.t.Month())*100 + d.t.Day() }

// DateRange holds when the job date falls within [From, To], inclusive.
// A recurring range ignores the year and may wrap around New Year.
type DateRange struct {
	From      Date `json:"from"`
	To        Date `json:"to"`
	Recurring bool `json:"recurring,omitempty"`
}

func (DateRange) Kind() Kind { return KindDateRange }

func (p DateRange) Describe() string {
	if p.Recurring {
		return fmt.Sprintf("every year from %s to %s", p.From.t.Format("01-02"), p.To.t.Format("01-02"))
	}
	return fmt.Sprintf("date between %s and %s", p.From, p.To)
}

func (p DateRange) validate(int) error {
	if p.From.IsZero() || p.To.IsZero() {
		return fmt.Errorf("date range requires from and to")
	}
	if !p.Recurring && p.To.Before(p.From) {
		return fmt.Errorf("date range ends (%s) before it starts (%s)", p.To, p.From)
	}
	return nil
}

func (p DateRange) eval(ctx types.PricingContext) bool {
	if ctx.Date.IsZero() {
		return false
	}
	day := DateOf(ctx.Date)
	if !p.Recurring {
		return !day.Before(p.From) && !p.To.Before(day)
	}
	md, from, to := day.monthDay(), p.From.monthDay(), p.To.monthDay()
	if from <= to {
		return md >= from && md <= to
	}
	return md >= from || md <= to
}

// Weekday holds when the job date falls on one of Days
type Weekday struct {
	Days []string `json:"days"`
}

// OnWeekdays builds a Weekday predicate
func OnWeekdays(days ...time.Weekday) Weekday {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = strings.ToUpper(d.String())
	}
	return Weekday{Days: names}
}

func (Weekday) Kind() Kind { return KindWeekday }

func (p Weekday) Describe() string {
	return "weekday in " + strings.Join(p.Days, ", ")
}

func (p Weekday) validate(int) error {
	if len(p.Days) == 0 {
		return fmt.Errorf("weekday requires at least one day")
	}
	for _, d := range p.Days {
		if _, ok := parseWeekday(d); !ok {
			return fmt.Errorf("unknown weekday %q", d)
		}
	}
	return nil
}

func (p Weekday) eval(ctx types.PricingContext) bool {
	if ctx.Date.IsZero() {
		return false
	}
	day := ctx.Date.Weekday()
	for _, d := range p.Days {
		if wd, _ := parseWeekday(d); wd == day {
			return true
		}
	}
	return false
}

func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(s), d.String()) {
			return d, true
		}
	}
	return time.Sunday, false
}

// DistanceThreshold holds when MinKm <= distance, and distance < MaxKm if set
type DistanceThreshold struct {
	MinKm float64  `json:"min_km"`
	MaxKm *float64 `json:"max_km,omitempty"`
}

// DistanceAtLeast builds an open-ended distance predicate
func DistanceAtLeast(km float64) DistanceThreshold {
	return DistanceThreshold{MinKm: km}
}

func (DistanceThreshold) Kind() Kind { return KindDistance }

func (p DistanceThreshold) Describe() string {
	return describeRange("distance", "km", p.MinKm, p.MaxKm)
}

func (p DistanceThreshold) validate(int) error {
	return validateRange("distance", p.MinKm, p.MaxKm)
}

func (p DistanceThreshold) eval(ctx types.PricingContext) bool {
	return inRange(ctx.DistanceKm, p.MinKm, p.MaxKm)
}

// VolumeThreshold holds when MinM3 <= volume, and volume < MaxM3 if set
type VolumeThreshold struct {
	MinM3 float64  `json:"min_m3"`
	MaxM3 *float64 `json:"max_m3,omitempty"`
}

// VolumeAtLeast builds an open-ended volume predicate
func VolumeAtLeast(m3 float64) VolumeThreshold {
	return VolumeThreshold{MinM3: m3}
}

func (VolumeThreshold) Kind() Kind { return KindVolume }

func (p VolumeThreshold) Describe() string {
	return describeRange("volume", "m³", p.MinM3, p.MaxM3)
}

func (p VolumeThreshold) validate(int) error {
	return validateRange("volume", p.MinM3, p.MaxM3)
}

func (p VolumeThreshold) eval(ctx types.PricingContext) bool {
	return inRange(ctx.VolumeM3, p.MinM3, p.MaxM3)
}

// WorkersThreshold holds when Min <= workers, and workers <= Max if set
type WorkersThreshold struct {
	Min int  `json:"min"`
	Max *int `json:"max,omitempty"`
}

func (WorkersThreshold) Kind() Kind { return KindWorkers }

func (p WorkersThreshold) Describe() string {
	if p.Max != nil {
		return fmt.Sprintf("workers between %d and %d", p.Min, *p.Max)
	}
	return fmt.Sprintf("at least %d workers", p.Min)
}

func (p WorkersThreshold) validate(int) error {
	if p.Min < 0 {
		return fmt.Errorf("workers minimum must not be negative")
	}
	if p.Max != nil && *p.Max < p.Min {
		return fmt.Errorf("workers maximum %d is below minimum %d", *p.Max, p.Min)
	}
	return nil
}

func (p WorkersThreshold) eval(ctx types.PricingContext) bool {
	return ctx.Workers >= p.Min && (p.Max == nil || ctx.Workers <= *p.Max)
}

// OptionSelected holds when the customer selected Option
type OptionSelected struct {
	Option string `json:"option"`
}

func (OptionSelected) Kind() Kind { return KindOption }

func (p OptionSelected) Describe() string { return "option " + p.Option + " selected" }

func (p OptionSelected) validate(int) error {
	if strings.TrimSpace(p.Option) == "" {
		return fmt.Errorf("option requires a name")
	}
	return nil
}

func (p OptionSelected) eval(ctx types.PricingContext) bool {
	return ctx.HasOption(p.Option)
}

// All holds when every nested condition holds
type All struct {
	Conditions []Condition `json:"conditions"`
}

func (All) Kind() Kind { return KindAll }

func (p All) Describe() string { return describeComposite(" and ", p.Conditions) }

func (p All) validate(depth int) error { return validateComposite("all", p.Conditions, depth) }

func (p All) eval(ctx types.PricingContext) bool {
	for _, c := range p.Conditions {
		if !c.Predicate.eval(ctx) {
			return false
		}
	}
	return true
}

// Any holds when at least one nested condition holds
type Any struct {
	Conditions []Condition `json:"conditions"`
}

func (Any) Kind() Kind { return KindAny }

func (p Any) Describe() string { return describeComposite(" or ", p.Conditions) }

func (p Any) validate(depth int) error { return validateComposite("any", p.Conditions, depth) }

func (p Any) eval(ctx types.PricingContext) bool {
	for _, c := range p.Conditions {
		if c.Predicate.eval(ctx) {
			return true
		}
	}
	return false
}

// Not negates a nested condition
type Not struct {
	Condition *Condition `json:"condition"`
}

func (Not) Kind() Kind { return KindNot }

func (p Not) Describe() string {
	if p.Condition == nil {
		return "not ?"
	}
	return "not (" + p.Condition.String() + ")"
}

func (p Not) validate(depth int) error {
	if p.Condition == nil || p.Condition.IsZero() {
		return fmt.Errorf("not requires a condition")
	}
	return p.Condition.validateAt(depth + 1)
}

func (p Not) eval(ctx types.PricingContext) bool {
	return !p.Condition.Predicate.eval(ctx)
}

func validateComposite(name string, cs []Condition, depth int) error {
	if len(cs) == 0 {
		return fmt.Errorf("%s requires at least one condition", name)
	}
	for i, c := range cs {
		if c.IsZero() {
			return fmt.Errorf("%s: condition %d is empty", name, i)
		}
		if err := c.validateAt(depth + 1); err != nil {
			return fmt.Errorf("%s[%d]: %w", name, i, err)
		}
	}
	return nil
}

func describeComposite(sep string, cs []Condition) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func validateRange(name string, min float64, max *float64) error {
	if math.IsNaN(min) || min < 0 {
		return fmt.Errorf("%s minimum must be a non-negative number", name)
	}
	if max != nil && (math.IsNaN(*max) || *max <= min) {
		return fmt.Errorf("%s maximum must be greater than minimum", name)
	}
	return nil
}

func inRange(v, min float64, max *float64) bool {
	return v >= min && (max == nil || v < *max)
}

func describeRange(name, unit string, min float64, max *float64) string {
	if max != nil {
		return fmt.Sprintf("%s in [%g, %g) %s", name, min, *max, unit)
	}
	return fmt.Sprintf("%s >= %g %s", name, min, unit)
}
