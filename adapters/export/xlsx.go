// Package export renders quotes and rule sets as XLSX workbooks for
// customers and pricing administrators.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"quote-engine/core/engine"
	"quote-engine/core/gateway"
	"quote-engine/core/types"
)

const (
	sheetQuote     = "Quote"
	sheetRules     = "Applied rules"
	sheetWarnings  = "Warnings"
	sheetRuleSet   = "Rules"
	sheetConstants = "Constants"
	sheetRejected  = "Rejected"
)

// QuoteWorkbook renders a quote: itemised base cost and totals on the
// first sheet, then the applied rules and the warnings.
func QuoteWorkbook(q engine.Quote) ([]byte, error) {
	w, err := newWorkbook(sheetQuote)
	if err != nil {
		return nil, err
	}
	defer w.f.Close()

	w.title(sheetQuote, fmt.Sprintf("%s quote, %.1f m³", q.ServiceType, q.Volume))
	w.header(sheetQuote, 3, "Item", "Quantity", "Rate", "Amount")
	row := 4
	for _, l := range q.Lines {
		w.row(sheetQuote, row, l.Label, l.Quantity.InexactFloat64(), money(l.Rate), money(l.Amount))
		row++
	}
	row++
	for _, total := range []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Base cost", q.BaseCost},
		{fmt.Sprintf("Adjustment (%s%%)", q.Breakdown.TotalPercentage.String()), q.PercentageAdjustment},
		{"Fixed adjustments", q.FixedAdjustment},
		{"Total", q.FinalPrice},
	} {
		w.row(sheetQuote, row, total.label, nil, nil, money(total.amount))
		w.bold(sheetQuote, row, 4)
		row++
	}
	if q.Breakdown.MinimumApplied && q.Breakdown.MinimumPrice != nil {
		w.row(sheetQuote, row, "Minimum price applied", nil, nil, money(*q.Breakdown.MinimumPrice))
	}

	if err := w.addSheet(sheetRules); err != nil {
		return nil, err
	}
	w.header(sheetRules, 1, "ID", "Name", "Category", "Value", "Percent", "Condition")
	for i, r := range q.Breakdown.AppliedRules {
		w.row(sheetRules, i+2, r.ID, r.Name, string(r.Category), r.Value.InexactFloat64(), r.PercentBased, r.Condition.String())
	}

	if err := w.addSheet(sheetWarnings); err != nil {
		return nil, err
	}
	w.header(sheetWarnings, 1, "Code", "Rule", "Message")
	for i, warn := range q.Breakdown.Warnings {
		w.row(sheetWarnings, i+2, string(warn.Code), warn.RuleID, warn.Message)
	}

	return w.bytes()
}

// SnapshotWorkbook renders a configuration snapshot: every accepted rule,
// the base constants per service type and the rules rejected at ingestion.
func SnapshotWorkbook(snap *gateway.Snapshot) ([]byte, error) {
	w, err := newWorkbook(sheetRuleSet)
	if err != nil {
		return nil, err
	}
	defer w.f.Close()

	w.header(sheetRuleSet, 1, "ID", "Name", "Service", "Category", "Value", "Percent", "Active", "Version", "Condition")
	for i, r := range snap.Rules {
		cond := ""
		if !r.Condition.IsZero() {
			body, err := json.Marshal(r.Condition)
			if err != nil {
				return nil, fmt.Errorf("encode condition of rule %s: %w", r.ID, err)
			}
			cond = string(body)
		}
		w.row(sheetRuleSet, i+2, r.ID, r.Name, string(r.ServiceType), string(r.Category),
			r.Value.InexactFloat64(), r.PercentBased, r.IsActive, r.Version, cond)
	}

	if err := w.addSheet(sheetConstants); err != nil {
		return nil, err
	}
	w.header(sheetConstants, 1, "Service", "Per m³", "Per km", "Per worker", "Per hour", "Add-ons")
	row := 2
	for _, st := range types.AllServiceTypes() {
		c, ok := snap.Constants[st]
		if !ok {
			continue
		}
		addOns := make([]string, 0, len(c.AddOns))
		for _, name := range c.AddOnNames() {
			addOns = append(addOns, name+"="+c.AddOns[name].StringFixed(2))
		}
		w.row(sheetConstants, row, string(st), money(c.PricePerM3), money(c.PricePerKm),
			money(c.PricePerWorker), money(c.PricePerHour), strings.Join(addOns, ", "))
		row++
	}

	if err := w.addSheet(sheetRejected); err != nil {
		return nil, err
	}
	w.header(sheetRejected, 1, "Rule", "Reason")
	for i, rej := range snap.Rejected {
		w.row(sheetRejected, i+2, rej.RuleID, rej.Reason)
	}

	return w.bytes()
}

type workbook struct {
	f       *excelize.File
	heading int
	strong  int
}

func newWorkbook(first string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), first); err != nil {
		f.Close()
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	heading, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	strong, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create bold style: %w", err)
	}
	return &workbook{f: f, heading: heading, strong: strong}, nil
}

func (w *workbook) addSheet(name string) error {
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	return nil
}

func (w *workbook) title(sheet, text string) {
	w.f.SetCellValue(sheet, "A1", sanitize(text))
	w.f.SetCellStyle(sheet, "A1", "A1", w.strong)
}

func (w *workbook) header(sheet string, row int, titles ...string) {
	cells := make([]interface{}, len(titles))
	for i, t := range titles {
		cells[i] = t
	}
	w.row(sheet, row, cells...)
	last, _ := excelize.CoordinatesToCellName(len(titles), row)
	first, _ := excelize.CoordinatesToCellName(1, row)
	w.f.SetCellStyle(sheet, first, last, w.heading)
}

func (w *workbook) row(sheet string, row int, values ...interface{}) {
	for i, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			v = sanitize(s)
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		w.f.SetCellValue(sheet, cell, v)
	}
}

func (w *workbook) bold(sheet string, row, cols int) {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(cols, row)
	w.f.SetCellStyle(sheet, first, last, w.strong)
}

func (w *workbook) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// sanitize keeps user-authored text from being read as a formula
func sanitize(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
