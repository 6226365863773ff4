package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"quote-engine/core/condition"
	"quote-engine/core/engine"
	"quote-engine/core/gateway"
	"quote-engine/core/rules"
	"quote-engine/core/types"
)

func sampleQuote(t *testing.T) engine.Quote {
	t.Helper()
	eng := engine.New(nil, nil, engine.DefaultOptions(), nil)
	in := types.EstimationInput{
		Surface:            50,
		LivingRoomLevel:    types.LevelStandard,
		Bedrooms:           []types.Bedroom{{Level: types.LevelStandard}, {Level: types.LevelLight}},
		HasEquippedKitchen: true,
		Density:            types.DensityStandard,
	}
	rs := []rules.Rule{{
		ID:           "weekend",
		Name:         "=weekend",
		Value:        decimal.NewFromInt(10),
		PercentBased: true,
		Category:     types.CategorySurcharge,
		ServiceType:  types.ServiceMoving,
		IsActive:     true,
	}}
	constants := types.BaseConstants{
		PricePerM3:     decimal.NewFromInt(35),
		PricePerKm:     decimal.RequireFromString("1.5"),
		PricePerWorker: decimal.NewFromInt(120),
	}
	ctx := types.PricingContext{Date: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), DistanceKm: 20, Workers: 2}

	q, err := eng.ComputeQuote(in, rs, types.ServiceMoving, ctx, constants)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	return q
}

func open(t *testing.T, body []byte) *excelize.File {
	t.Helper()
	if len(body) == 0 {
		t.Fatal("Expected a non-empty workbook")
	}
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Expected a valid workbook: %v", err)
	}
	return f
}

func TestQuoteWorkbook(t *testing.T) {
	body, err := QuoteWorkbook(sampleQuote(t))
	if err != nil {
		t.Fatalf("QuoteWorkbook failed: %v", err)
	}
	f := open(t, body)
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != sheetQuote || sheets[1] != sheetRules || sheets[2] != sheetWarnings {
		t.Fatalf("Expected Quote, Applied rules and Warnings sheets, got %v", sheets)
	}

	if v, _ := f.GetCellValue(sheetQuote, "A1"); v != "MOVING quote, 24.0 m³" {
		t.Errorf("Expected title row, got %q", v)
	}
	if v, _ := f.GetCellValue(sheetQuote, "A4"); v == "" {
		t.Error("Expected the first base cost line on row 4")
	}

	// 3 lines (volume, distance, workers), a blank row, then four totals
	if v, _ := f.GetCellValue(sheetQuote, "A11"); v != "Total" {
		t.Errorf("Expected the total label on row 11, got %q", v)
	}
	if v, _ := f.GetCellValue(sheetQuote, "D11"); v != "1221" {
		t.Errorf("Expected total 1221, got %q", v)
	}

	if v, _ := f.GetCellValue(sheetRules, "B2"); v != "'=weekend" && v != "=weekend" {
		t.Errorf("Expected the rule name to be stored as text, got %q", v)
	}
	if formula, _ := f.GetCellFormula(sheetRules, "B2"); formula != "" {
		t.Errorf("Expected no formula in a rule name cell, got %q", formula)
	}
}

func TestSnapshotWorkbook(t *testing.T) {
	weekend := rules.Rule{
		ID:           "weekend",
		Name:         "weekend",
		Value:        decimal.NewFromInt(10),
		PercentBased: true,
		Category:     types.CategorySurcharge,
		ServiceType:  types.ServiceMoving,
		IsActive:     true,
		Condition:    condition.New(condition.OnWeekdays(time.Saturday, time.Sunday)),
	}
	bad := weekend
	bad.ID = "bad-discount"
	bad.Name = "bad-discount"
	bad.Category = types.CategoryDiscount

	snap, err := gateway.NewSnapshot([]rules.Rule{weekend, bad}, map[types.ServiceType]types.BaseConstants{
		types.ServiceMoving: {
			PricePerM3: decimal.NewFromInt(35),
			AddOns:     map[string]decimal.Decimal{"packing": decimal.NewFromInt(150)},
		},
	}, time.Now(), nil)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}

	body, err := SnapshotWorkbook(snap)
	if err != nil {
		t.Fatalf("SnapshotWorkbook failed: %v", err)
	}
	f := open(t, body)
	defer f.Close()

	if v, _ := f.GetCellValue(sheetRuleSet, "A2"); v != "weekend" {
		t.Errorf("Expected weekend on the first rule row, got %q", v)
	}
	if v, _ := f.GetCellValue(sheetRuleSet, "A3"); v != "" {
		t.Errorf("Expected rejected rules to stay off the rules sheet, got %q", v)
	}
	if v, _ := f.GetCellValue(sheetRuleSet, "I2"); v == "" {
		t.Error("Expected the condition JSON in column I")
	}
	if v, _ := f.GetCellValue(sheetConstants, "F2"); v != "packing=150.00" {
		t.Errorf("Expected add-on listing, got %q", v)
	}
	if v, _ := f.GetCellValue(sheetRejected, "A2"); v != "bad-discount" {
		t.Errorf("Expected the rejected rule listed, got %q", v)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"=SUM(1)": "'=SUM(1)",
		"@cmd":    "'@cmd",
		"packing": "packing",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Errorf("Expected sanitize(%q) = %q, got %q", in, want, got)
		}
	}
}
