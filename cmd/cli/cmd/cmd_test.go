package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"quote-engine/core/engine"
)

const testRulebook = `
service "MOVING" {
  price_per_m3     = 35
  price_per_km     = 1.5
  price_per_worker = 120
}

rule "weekend" {
  service   = "MOVING"
  category  = "SURCHARGE"
  value     = 10
  percent   = true
  condition = { type = "weekday", days = ["SATURDAY", "SUNDAY"] }
}
`

const testRequest = `{
  "input": {
    "surface": 50,
    "livingRoomLevel": "STANDARD",
    "bedrooms": [{"level": "STANDARD"}, {"level": "LIGHT"}],
    "hasEquippedKitchen": true,
    "density": "STANDARD"
  },
  "service_type": "MOVING",
  "context": {"date": "2026-10-17", "distance_km": 20, "workers": 2}
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.json")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestRulesValidateCommand(t *testing.T) {
	out, err := run(t, "rules", "validate", writeFile(t, "rules.hcl", testRulebook))
	if err != nil {
		t.Fatalf("Expected validate to succeed, got %v: %s", err, out)
	}
	if !strings.Contains(out, "1 rules accepted, 0 rejected") {
		t.Errorf("Expected the acceptance summary, got %q", out)
	}

	bad := testRulebook + `
rule "bad-discount" {
  service  = "MOVING"
  category = "DISCOUNT"
  value    = 5
}
`
	out, err = run(t, "rules", "validate", writeFile(t, "bad.hcl", bad))
	if err == nil {
		t.Error("Expected validate to fail when a rule is rejected")
	}
	if !strings.Contains(out, "rejected bad-discount") {
		t.Errorf("Expected the rejected rule to be listed, got %q", out)
	}
}

func TestQuoteCommand(t *testing.T) {
	rulebookPath := writeFile(t, "rules.hcl", testRulebook)
	requestPath := writeFile(t, "request.json", testRequest)
	xlsxPath := filepath.Join(t.TempDir(), "quote.xlsx")

	out, err := run(t, "quote", "--input", requestPath, "--rulebook", rulebookPath, "--format", "json", "--xlsx", xlsxPath)
	if err != nil {
		t.Fatalf("Expected quote to succeed, got %v: %s", err, out)
	}

	var q engine.Quote
	if err := json.Unmarshal([]byte(out), &q); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	// 1110 base + 10% weekend surcharge
	if !q.FinalPrice.Equal(decimal.NewFromInt(1221)) {
		t.Errorf("Expected final price 1221.00, got %s", q.FinalPrice)
	}
	if info, err := os.Stat(xlsxPath); err != nil || info.Size() == 0 {
		t.Errorf("Expected an XLSX workbook at %s", xlsxPath)
	}
}

func TestEstimateCommand(t *testing.T) {
	input := `{"surface": 50, "livingRoomLevel": "STANDARD", "bedrooms": [{"level": "STANDARD"}, {"level": "LIGHT"}], "hasEquippedKitchen": true, "density": "STANDARD"}`

	out, err := run(t, "estimate", "--input", writeFile(t, "job.json", input), "--format", "text")
	if err != nil {
		t.Fatalf("Expected estimate to succeed, got %v", err)
	}
	if !strings.Contains(out, "24.0 m³") {
		t.Errorf("Expected a 24.0 m³ volume, got %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("Expected version to succeed, got %v", err)
	}
	if !strings.Contains(out, Version) {
		t.Errorf("Expected version %s in output, got %q", Version, out)
	}
}
