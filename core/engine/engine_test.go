package engine

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quote-engine/core/condition"
	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
)

func apartment() types.EstimationInput {
	return types.EstimationInput{
		Surface:            50,
		LivingRoomLevel:    types.LevelStandard,
		Bedrooms:           []types.Bedroom{{Level: types.LevelStandard}, {Level: types.LevelLight}},
		HasEquippedKitchen: true,
		Density:            types.DensityStandard,
	}
}

func movingConstants() types.BaseConstants {
	return types.BaseConstants{
		PricePerM3:     decimal.NewFromInt(35),
		PricePerKm:     decimal.RequireFromString("1.5"),
		PricePerWorker: decimal.NewFromInt(120),
		AddOns: map[string]decimal.Decimal{
			"packing":   decimal.NewFromInt(150),
			"insurance": decimal.RequireFromString("49.90"),
		},
	}
}

func rule(id string, category types.Category, value string, percent bool) rules.Rule {
	return rules.Rule{
		ID:           id,
		Name:         id,
		Value:        decimal.RequireFromString(value),
		PercentBased: percent,
		Category:     category,
		ServiceType:  types.ServiceMoving,
		IsActive:     true,
	}
}

func saturday() time.Time {
	return time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
}

// TestEndToEndQuote prices the reference apartment:
// volume 24.0 m³ -> 24*35 + 20*1.5 + 2*120 = 1110.00 base,
// +18% = 199.80, +45 fixed -> 1354.80
func TestEndToEndQuote(t *testing.T) {
	weekend := rule("weekend", types.CategorySurcharge, "10", true)
	weekend.Condition = condition.New(condition.OnWeekdays(time.Saturday, time.Sunday))
	rs := []rules.Rule{
		weekend,
		rule("peak-season", types.CategorySeasonal, "8", true),
		rule("stairs", types.CategoryFixed, "45", false),
	}
	ctx := types.PricingContext{Date: saturday(), DistanceKm: 20, Workers: 2}

	q, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(apartment(), rs, types.ServiceMoving, ctx, movingConstants())
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}

	if q.Volume != 24.0 {
		t.Errorf("Expected volume 24.0, got %g", q.Volume)
	}
	if !q.BaseCost.Equal(decimal.NewFromInt(1110)) {
		t.Errorf("Expected base cost 1110, got %s", q.BaseCost)
	}
	if !q.PercentageAdjustment.Equal(decimal.RequireFromString("199.80")) {
		t.Errorf("Expected percentage adjustment 199.80, got %s", q.PercentageAdjustment)
	}
	if !q.FixedAdjustment.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Expected fixed adjustment 45, got %s", q.FixedAdjustment)
	}
	if !q.FinalPrice.Equal(decimal.RequireFromString("1354.80")) {
		t.Errorf("Expected final price 1354.80, got %s", q.FinalPrice)
	}
	if sum := q.BaseCost.Add(q.PercentageAdjustment).Add(q.FixedAdjustment); !sum.Equal(q.FinalPrice) {
		t.Errorf("Itemised amounts %s do not add up to %s", sum, q.FinalPrice)
	}
}

func TestMinimumFloor(t *testing.T) {
	// Only distance is charged: 40 km * 2 = 80
	constants := types.BaseConstants{PricePerKm: decimal.NewFromInt(2)}
	rs := []rules.Rule{rule("moving-minimum", types.CategoryMinimum, "100", false)}
	ctx := types.PricingContext{DistanceKm: 40}

	q, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(apartment(), rs, types.ServiceMoving, ctx, constants)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}

	if !q.BaseCost.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("Expected computed price 80 before the floor, got %s", q.BaseCost)
	}
	if !q.FinalPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected final price raised to 100, got %s", q.FinalPrice)
	}
	if !q.Breakdown.MinimumApplied {
		t.Error("Expected breakdown to flag minimumApplied")
	}
	if !q.Breakdown.HasWarning(types.WarnMinimumApplied) {
		t.Error("Expected a MINIMUM_APPLIED warning")
	}
	if !q.Breakdown.Applied("moving-minimum") {
		t.Errorf("Expected moving-minimum among the applied rules, got %+v", q.Breakdown.AppliedRules)
	}
	if !q.FixedAdjustment.IsZero() {
		t.Errorf("Expected the minimum to stay out of the fixed adjustment, got %s", q.FixedAdjustment)
	}
}

func TestMinimumNotAppliedAboveFloor(t *testing.T) {
	rs := []rules.Rule{rule("moving-minimum", types.CategoryMinimum, "100", false)}
	q, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(apartment(), rs, types.ServiceMoving, types.PricingContext{DistanceKm: 10, Workers: 2}, movingConstants())
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if q.Breakdown.MinimumApplied {
		t.Errorf("Minimum must not apply to a %s quote", q.FinalPrice)
	}
	if q.Breakdown.Applied("moving-minimum") {
		t.Error("Expected an unused minimum to stay out of the applied rules")
	}
}

func TestMinimumForOtherServiceIsIgnored(t *testing.T) {
	cleaningMin := rule("cleaning-minimum", types.CategoryMinimum, "500", false)
	cleaningMin.ServiceType = types.ServiceCleaning
	constants := types.BaseConstants{PricePerKm: decimal.NewFromInt(2)}

	q, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(apartment(), []rules.Rule{cleaningMin}, types.ServiceMoving, types.PricingContext{DistanceKm: 40}, constants)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if !q.FinalPrice.Equal(decimal.NewFromInt(80)) || q.Breakdown.MinimumApplied {
		t.Errorf("Expected 80 without floor, got %s (minimumApplied=%v)", q.FinalPrice, q.Breakdown.MinimumApplied)
	}
}

func TestFloorAtZero(t *testing.T) {
	constants := types.BaseConstants{PricePerKm: decimal.NewFromInt(1)}
	rs := []rules.Rule{rule("voucher", types.CategoryFixed, "-50", false)}
	ctx := types.PricingContext{DistanceKm: 10}

	q, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(apartment(), rs, types.ServiceMoving, ctx, constants)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if !q.FinalPrice.IsZero() {
		t.Errorf("Expected price floored at 0, got %s", q.FinalPrice)
	}
	if !q.Breakdown.HasWarning(types.WarnFlooredAtZero) {
		t.Error("Expected a FLOORED_AT_ZERO warning")
	}

	q, _ = New(nil, nil, Options{}, nil).ComputeQuote(apartment(), rs, types.ServiceMoving, ctx, constants)
	if !q.FinalPrice.Equal(decimal.NewFromInt(-40)) {
		t.Errorf("Expected -40 with the zero floor disabled, got %s", q.FinalPrice)
	}
}

func TestAddOnsAndHourlyRate(t *testing.T) {
	constants := movingConstants()
	constants.PricePerHour = decimal.NewFromInt(30)
	ctx := types.PricingContext{Workers: 3, DurationHours: 4, Options: []string{"PACKING"}}

	q, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(apartment(), nil, types.ServiceMoving, ctx, constants)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}

	// 24*35 + 0 + 3*120 + 12h*30 + packing 150
	want := decimal.NewFromInt(840 + 360 + 360 + 150)
	if !q.BaseCost.Equal(want) {
		t.Errorf("Expected base cost %s, got %s", want, q.BaseCost)
	}
	var addOns int
	for _, l := range q.Lines {
		if l.Kind == LineAddOn {
			addOns++
			if l.Label != "packing" {
				t.Errorf("Unexpected add-on line %q", l.Label)
			}
		}
	}
	if addOns != 1 {
		t.Errorf("Expected exactly one add-on line, got %d", addOns)
	}
}

func TestInvalidInputAbortsQuote(t *testing.T) {
	in := apartment()
	in.Surface = 0

	_, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(in, nil, types.ServiceMoving, types.PricingContext{}, movingConstants())
	if !errors.IsType(err, errors.TypeInvalidInput) {
		t.Fatalf("Expected INVALID_INPUT, got %v", err)
	}
	if err.Error() != "surface is required" {
		t.Errorf("Expected field-specific message, got %q", err.Error())
	}
}

func TestInvalidContextAbortsQuote(t *testing.T) {
	e := New(nil, nil, DefaultOptions(), nil)
	for field, ctx := range map[string]types.PricingContext{
		"distanceKm":    {DistanceKm: -1},
		"workers":       {Workers: -2},
		"durationHours": {DurationHours: -0.5},
	} {
		_, err := e.ComputeQuote(apartment(), nil, types.ServiceMoving, ctx, movingConstants())
		e2, ok := errors.As(err)
		if !ok || e2.Type != errors.TypeInvalidInput || e2.Field != field {
			t.Errorf("Expected INVALID_INPUT on %s, got %v", field, err)
		}
	}

	_, err := e.ComputeQuote(apartment(), nil, types.ServiceType("GARDENING"), types.PricingContext{}, movingConstants())
	if !errors.IsType(err, errors.TypeInvalidInput) {
		t.Errorf("Expected unknown service type to be INVALID_INPUT, got %v", err)
	}
}

func TestBrokenRuleDoesNotAbortQuote(t *testing.T) {
	broken := rule("broken", types.CategorySurcharge, "20", true)
	broken.Condition = condition.New(condition.All{})

	q, err := New(nil, nil, DefaultOptions(), nil).ComputeQuote(apartment(), []rules.Rule{broken}, types.ServiceMoving, types.PricingContext{Workers: 2}, movingConstants())
	if err != nil {
		t.Fatalf("Expected quote despite a broken rule, got %v", err)
	}
	if !q.PercentageAdjustment.IsZero() {
		t.Errorf("Broken rule must not contribute, got %s", q.PercentageAdjustment)
	}
	if !q.Breakdown.HasWarning(types.WarnRuleEvaluation) {
		t.Error("Expected a RULE_EVALUATION warning on the quote")
	}
}

func TestQuoteDeterminismUnderConcurrency(t *testing.T) {
	e := New(nil, nil, DefaultOptions(), nil)
	rs := []rules.Rule{
		rule("a", types.CategorySurcharge, "12.5", true),
		rule("b", types.CategoryFixed, "19.99", false),
	}
	ctx := types.PricingContext{Date: saturday(), DistanceKm: 33.3, Workers: 3, Options: []string{"insurance"}}

	first, err := e.ComputeQuote(apartment(), rs, types.ServiceMoving, ctx, movingConstants())
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	want, _ := json.Marshal(first)

	var wg sync.WaitGroup
	results := make([][]byte, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, _ := e.ComputeQuote(apartment(), rs, types.ServiceMoving, ctx, movingConstants())
			results[i], _ = json.Marshal(q)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if string(got) != string(want) {
			t.Fatalf("Run %d differs:\n%s\nvs\n%s", i, got, want)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"2.345":  "2.35",
		"2.344":  "2.34",
		"-0.125": "-0.12",
		"10":     "10",
		"0.005":  "0.01",
	}
	for in, want := range cases {
		got := roundHalfUp(decimal.RequireFromString(in), 2)
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("roundHalfUp(%s) = %s, want %s", in, got, want)
		}
	}
}
