package rulebook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quote-engine/core/condition"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
)

const sample = `
service "MOVING" {
  price_per_m3     = 35
  price_per_km     = 1.5
  price_per_worker = 120
  add_ons = { Packing = 150, insurance = 49.90 }
}

rule "weekend" {
  service   = "MOVING"
  category  = "SURCHARGE"
  value     = 10
  percent   = true
  condition = { type = "weekday", days = ["SATURDAY", "SUNDAY"] }
}

rule "long-haul" {
  id        = "moving-long-haul"
  service   = "moving"
  category  = "FIXED"
  value     = 80.25
  condition = {
    type = "all"
    conditions = [
      { type = "distance", min_km = 100 },
      { type = "not", condition = { type = "option", option = "storage" } },
    ]
  }
}

rule "retired" {
  service  = "MOVING"
  category = "SEASONAL"
  value    = 5
  percent  = true
  active   = false
}

rule "moving-minimum" {
  service  = "MOVING"
  category = "MINIMUM"
  value    = 150
}
`

func TestParseSample(t *testing.T) {
	doc, err := Parse([]byte(sample), "sample.hcl")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	c, ok := doc.Constants[types.ServiceMoving]
	if !ok {
		t.Fatal("Expected MOVING constants")
	}
	if !c.PricePerKm.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Expected price_per_km 1.5, got %s", c.PricePerKm)
	}
	if !c.PricePerHour.IsZero() {
		t.Errorf("Expected price_per_hour to default to 0, got %s", c.PricePerHour)
	}
	if !c.AddOns["packing"].Equal(decimal.NewFromInt(150)) || !c.AddOns["insurance"].Equal(decimal.RequireFromString("49.9")) {
		t.Errorf("Unexpected add-ons %v", c.AddOns)
	}

	if len(doc.Rules) != 4 || len(doc.RuleErrors) != 0 {
		t.Fatalf("Expected 4 rules and no errors, got %d rules, errors %v", len(doc.Rules), doc.RuleErrors)
	}

	weekend := doc.Rules[0]
	if weekend.ID != "weekend" || !weekend.PercentBased || !weekend.IsActive {
		t.Errorf("Unexpected weekend rule %+v", weekend)
	}
	if weekend.Condition.Predicate.Kind() != condition.KindWeekday {
		t.Errorf("Expected weekday condition, got %s", weekend.Condition)
	}

	longHaul := doc.Rules[1]
	if longHaul.ID != "moving-long-haul" || longHaul.ServiceType != types.ServiceMoving {
		t.Errorf("Expected explicit id and normalised service, got %s / %s", longHaul.ID, longHaul.ServiceType)
	}
	if !longHaul.Value.Equal(decimal.RequireFromString("80.25")) {
		t.Errorf("Expected value 80.25, got %s", longHaul.Value)
	}
	ok, err = longHaul.Condition.Evaluate(types.PricingContext{DistanceKm: 120})
	if err != nil || !ok {
		t.Errorf("Expected long-haul to match at 120 km without storage, got %v (%v)", ok, err)
	}
	ok, _ = longHaul.Condition.Evaluate(types.PricingContext{DistanceKm: 120, Options: []string{"storage"}})
	if ok {
		t.Error("Expected long-haul not to match when storage is selected")
	}

	if doc.Rules[2].IsActive {
		t.Error("Expected retired rule to be inactive")
	}
	if !doc.Rules[3].Condition.IsZero() {
		t.Error("Expected unconditional minimum rule")
	}
}

func TestBadConditionRejectsOnlyThatRule(t *testing.T) {
	src := `
rule "ok" {
  service  = "MOVING"
  category = "FIXED"
  value    = 10
}
rule "broken" {
  service   = "MOVING"
  category  = "FIXED"
  value     = 10
  condition = { type = "moon_phase" }
}
`
	doc, err := Parse([]byte(src), "broken.hcl")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Rules) != 1 || doc.Rules[0].ID != "ok" {
		t.Errorf("Expected only the valid rule, got %v", doc.Rules)
	}
	if len(doc.RuleErrors) != 1 || !errors.IsType(doc.RuleErrors[0], errors.TypeInvalidRule) {
		t.Errorf("Expected one INVALID_RULE error, got %v", doc.RuleErrors)
	}
}

func TestSyntaxErrorFailsDocument(t *testing.T) {
	_, err := Parse([]byte(`rule "x" {`), "bad.hcl")
	if !errors.IsType(err, errors.TypeParsing) {
		t.Errorf("Expected PARSING_ERROR, got %v", err)
	}
}

func TestDuplicateServiceFailsDocument(t *testing.T) {
	src := `
service "MOVING" {
  price_per_m3 = 1
  price_per_km = 1
  price_per_worker = 1
}
service "moving" {
  price_per_m3 = 2
  price_per_km = 2
  price_per_worker = 2
}
`
	if _, err := Parse([]byte(src), "dup.hcl"); err == nil {
		t.Error("Expected duplicate service blocks to fail")
	}
}

func TestSourceLoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	services := `
service "MOVING" {
  price_per_m3     = 35
  price_per_km     = 1.5
  price_per_worker = 120
}
`
	rulesHCL := `
rule "weekend" {
  service   = "MOVING"
  category  = "SURCHARGE"
  value     = 10
  percent   = true
}
rule "promo" {
  service  = "MOVING"
  category = "DISCOUNT"
  value    = 15
  percent  = true
}
`
	if err := os.WriteFile(filepath.Join(dir, "10-services.hcl"), []byte(services), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "20-rules.hcl"), []byte(rulesHCL), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewSource(dir, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.Rules) != 1 || s.Rules[0].ID != "weekend" {
		t.Errorf("Expected weekend only, got %v", s.Rules)
	}
	if len(s.Rejected) != 1 || s.Rejected[0].RuleID != "promo" {
		t.Errorf("Expected positive discount to be rejected, got %+v", s.Rejected)
	}
	if s.Version == "" || s.LoadedAt.IsZero() || time.Since(s.LoadedAt) > time.Minute {
		t.Errorf("Expected a versioned, timestamped snapshot, got %q at %s", s.Version, s.LoadedAt)
	}
}

func TestSourceMissingPathIsUnavailable(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "missing.hcl"), nil).Load(context.Background())
	if !errors.IsType(err, errors.TypeConfigUnavailable) {
		t.Errorf("Expected CONFIGURATION_UNAVAILABLE, got %v", err)
	}
}
