// Package rulebook loads pricing rules and base constants from HCL files.
//
//	service "MOVING" {
//	  price_per_m3     = 35
//	  price_per_km     = 1.5
//	  price_per_worker = 120
//	  add_ons = { packing = 150 }
//	}
//
//	rule "weekend" {
//	  service   = "MOVING"
//	  category  = "SURCHARGE"
//	  value     = 10
//	  percent   = true
//	  condition = { type = "weekday", days = ["SATURDAY", "SUNDAY"] }
//	}
package rulebook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"go.uber.org/zap"

	"quote-engine/core/condition"
	"quote-engine/core/gateway"
	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
	"quote-engine/internal/logging"
)

// Extension is the rulebook file extension
const Extension = ".hcl"

type fileSchema struct {
	Services []serviceBlock `hcl:"service,block"`
	Rules    []ruleBlock    `hcl:"rule,block"`
}

type serviceBlock struct {
	Type           string         `hcl:"type,label"`
	PricePerM3     hcl.Expression `hcl:"price_per_m3"`
	PricePerKm     hcl.Expression `hcl:"price_per_km"`
	PricePerWorker hcl.Expression `hcl:"price_per_worker"`
	PricePerHour   hcl.Expression `hcl:"price_per_hour,optional"`
	AddOns         hcl.Expression `hcl:"add_ons,optional"`
}

type ruleBlock struct {
	Label     string         `hcl:"name,label"`
	ID        string         `hcl:"id,optional"`
	Service   string         `hcl:"service"`
	Category  string         `hcl:"category"`
	Value     hcl.Expression `hcl:"value"`
	Percent   bool           `hcl:"percent,optional"`
	Active    *bool          `hcl:"active,optional"`
	Version   int            `hcl:"version,optional"`
	Condition hcl.Expression `hcl:"condition,optional"`
}

// Document is the decoded content of one or more rulebook files
type Document struct {
	Rules     []rules.Rule
	Constants map[types.ServiceType]types.BaseConstants

	// RuleErrors are rules that could not be decoded; the rest of the
	// document is still usable
	RuleErrors []error
}

// Parse decodes a single rulebook. Syntax errors and malformed service
// blocks fail the whole document.
func Parse(src []byte, filename string) (*Document, error) {
	doc := &Document{Constants: map[types.ServiceType]types.BaseConstants{}}
	if err := parseInto(hclparse.NewParser(), doc, src, filename); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseFiles decodes a file, or every *.hcl file of a directory in name
// order, into one document
func ParseFiles(path string) (*Document, error) {
	files, err := rulebookFiles(path)
	if err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	doc := &Document{Constants: map[types.ServiceType]types.BaseConstants{}}
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(errors.TypeConfigUnavailable, err, "failed to read rulebook %s", f)
		}
		if err := parseInto(parser, doc, src, f); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func rulebookFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeConfigUnavailable, err, "rulebook %s is not accessible", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeConfigUnavailable, err, "failed to list rulebook directory %s", path)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Extension) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Newf(errors.TypeConfigUnavailable, "no %s files in %s", Extension, path)
	}
	sort.Strings(files)
	return files, nil
}

func parseInto(parser *hclparse.Parser, doc *Document, src []byte, filename string) error {
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return diagError(diags)
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(f.Body, nil, &schema); diags.HasErrors() {
		return diagError(diags)
	}

	for _, sb := range schema.Services {
		st, ok := types.ParseServiceType(sb.Type)
		if !ok {
			return errors.Newf(errors.TypeParsing, "%s: unknown service type %q", filename, sb.Type)
		}
		if _, dup := doc.Constants[st]; dup {
			return errors.Newf(errors.TypeParsing, "%s: service %s is defined more than once", filename, st)
		}
		c, err := decodeService(sb)
		if err != nil {
			return errors.Wrapf(errors.TypeParsing, err, "%s: service %s", filename, st)
		}
		doc.Constants[st] = c
	}

	for _, rb := range schema.Rules {
		r, err := decodeRule(rb)
		if err != nil {
			doc.RuleErrors = append(doc.RuleErrors, err)
			continue
		}
		doc.Rules = append(doc.Rules, r)
	}
	return nil
}

func decodeService(sb serviceBlock) (types.BaseConstants, error) {
	var c types.BaseConstants
	var err error
	if c.PricePerM3, err = decimalAttr(sb.PricePerM3, "price_per_m3", false); err != nil {
		return c, err
	}
	if c.PricePerKm, err = decimalAttr(sb.PricePerKm, "price_per_km", false); err != nil {
		return c, err
	}
	if c.PricePerWorker, err = decimalAttr(sb.PricePerWorker, "price_per_worker", false); err != nil {
		return c, err
	}
	if c.PricePerHour, err = decimalAttr(sb.PricePerHour, "price_per_hour", true); err != nil {
		return c, err
	}

	val, diags := sb.AddOns.Value(nil)
	if diags.HasErrors() {
		return c, diagError(diags)
	}
	if val.IsNull() {
		return c, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return c, fmt.Errorf("add_ons must be an object of prices")
	}
	c.AddOns = make(map[string]decimal.Decimal)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		price, err := toDecimal(v)
		if err != nil {
			return c, fmt.Errorf("add_ons.%s: %w", k.AsString(), err)
		}
		c.AddOns[strings.ToLower(k.AsString())] = price
	}
	return c, nil
}

func decodeRule(rb ruleBlock) (rules.Rule, error) {
	id := rb.ID
	if id == "" {
		id = rb.Label
	}

	r := rules.Rule{
		ID:           id,
		Name:         rb.Label,
		PercentBased: rb.Percent,
		Category:     types.Category(strings.ToUpper(strings.TrimSpace(rb.Category))),
		ServiceType:  types.ServiceType(strings.ToUpper(strings.TrimSpace(rb.Service))),
		IsActive:     rb.Active == nil || *rb.Active,
		Version:      rb.Version,
	}

	value, err := decimalAttr(rb.Value, "value", false)
	if err != nil {
		return r, errors.InvalidRule(id, "rule %s: %v", id, err)
	}
	r.Value = value

	cond, err := conditionAttr(rb.Condition)
	if err != nil {
		return r, errors.InvalidRule(id, "rule %s: %v", id, err)
	}
	r.Condition = cond
	return r, nil
}

// conditionAttr converts an HCL object into the condition JSON form
func conditionAttr(expr hcl.Expression) (condition.Condition, error) {
	if expr == nil {
		return condition.Condition{}, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return condition.Condition{}, diagError(diags)
	}
	if val.IsNull() {
		return condition.Condition{}, nil
	}
	if !val.IsWhollyKnown() {
		return condition.Condition{}, fmt.Errorf("condition must be a literal")
	}
	body, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return condition.Condition{}, fmt.Errorf("condition: %w", err)
	}
	return condition.Parse(body)
}

func decimalAttr(expr hcl.Expression, name string, optional bool) (decimal.Decimal, error) {
	if expr == nil {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%s is required", name)
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return decimal.Zero, diagError(diags)
	}
	if val.IsNull() {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%s is required", name)
	}
	d, err := toDecimal(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// toDecimal keeps the literal precision of HCL numbers
func toDecimal(val cty.Value) (decimal.Decimal, error) {
	if !val.IsKnown() || val.IsNull() {
		return decimal.Zero, fmt.Errorf("must be a known number")
	}
	if val.Type() == cty.String {
		return decimal.NewFromString(val.AsString())
	}
	if val.Type() != cty.Number {
		return decimal.Zero, fmt.Errorf("must be a number, got %s", val.Type().FriendlyName())
	}
	return decimal.NewFromString(val.AsBigFloat().Text('f', -1))
}

func diagError(diags hcl.Diagnostics) error {
	var msgs []string
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		if d.Subject != nil {
			msg = fmt.Sprintf("%s:%d: %s", d.Subject.Filename, d.Subject.Start.Line, msg)
		}
		msgs = append(msgs, msg)
	}
	return errors.New(errors.TypeParsing, strings.Join(msgs, "; "))
}

// Source is a gateway source backed by rulebook files. Every Load re-reads
// the files, so edits are picked up on the next refresh.
type Source struct {
	path   string
	logger *zap.Logger
}

// NewSource creates a rulebook source for a file or directory
func NewSource(path string, logger *zap.Logger) *Source {
	return &Source{path: path, logger: logging.Component(logger, "rulebook")}
}

// Load parses the rulebook into a validated snapshot
func (s *Source) Load(ctx context.Context) (*gateway.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := ParseFiles(s.path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("rulebook parsed",
		zap.String("path", s.path),
		zap.Int("rules", len(doc.Rules)),
		zap.Int("services", len(doc.Constants)))
	return gateway.NewSnapshot(doc.Rules, doc.Constants, time.Now().UTC(), s.logger, doc.RuleErrors...)
}
