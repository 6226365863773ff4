// Package cmd - quote command
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"quote-engine/adapters/export"
	"quote-engine/adapters/rulebook"
	"quote-engine/api"
	"quote-engine/core/engine"
	"quote-engine/core/gateway"
	"quote-engine/core/types"
	"quote-engine/internal/bootstrap"
	"quote-engine/internal/config"
	"quote-engine/internal/errors"
)

var (
	quoteInput    string
	quoteRulebook string
	quoteFormat   string
	quoteXLSX     string
	quoteTimeout  time.Duration
)

// quoteCmd represents the quote command
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a quotation",
	Long: `Price a quotation request against the configured rules and base constants.

The input has the same shape as the POST /v1/quote body:
  {"input": {...}, "service_type": "MOVING", "context": {"date": "2026-10-17", "distance_km": 20, "workers": 2}}

Examples:
  quote quote --input request.json
  quote quote --input request.json --rulebook ./rules --xlsx quote.xlsx`,
	Args: cobra.NoArgs,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVarP(&quoteInput, "input", "i", "-", "quote request JSON file")
	quoteCmd.Flags().StringVar(&quoteRulebook, "rulebook", "", "price against this HCL rulebook instead of the configured backend")
	quoteCmd.Flags().StringVarP(&quoteFormat, "format", "f", "text", "output format (text, json)")
	quoteCmd.Flags().StringVar(&quoteXLSX, "xlsx", "", "also write the quote as an XLSX workbook")
	quoteCmd.Flags().DurationVar(&quoteTimeout, "timeout", 30*time.Second, "timeout for loading the configuration")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	var req api.QuoteRequest
	if err := readJSON(quoteInput, &req); err != nil {
		return err
	}
	st, ok := types.ParseServiceType(req.ServiceType)
	if !ok {
		return errors.InvalidInput("service_type", "service_type must be one of MOVING, CLEANING, DELIVERY, PACKING (got %q)", req.ServiceType)
	}
	pctx, err := req.Context.PricingContext(time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), quoteTimeout)
	defer cancel()

	eng, gw, closeFn, err := openGateway(ctx, quoteRulebook)
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := gw.Snapshot(ctx)
	if err != nil {
		return err
	}
	constants, ok := snap.Constants[st]
	if !ok {
		return errors.ConfigurationUnavailable("no base constants configured for "+st.String(), nil)
	}

	q, err := eng.ComputeQuote(req.Input, snap.RulesFor(st), st, pctx, constants)
	if err != nil {
		return err
	}

	if quoteXLSX != "" {
		body, err := export.QuoteWorkbook(q)
		if err != nil {
			return err
		}
		if err := os.WriteFile(quoteXLSX, body, 0644); err != nil {
			return fmt.Errorf("write %s: %w", quoteXLSX, err)
		}
	}

	out := cmd.OutOrStdout()
	switch quoteFormat {
	case "json":
		return writeJSON(out, q)
	case "text":
		printQuote(out, q)
		return nil
	}
	return fmt.Errorf("unknown format %q", quoteFormat)
}

// openGateway wires the engine and a gateway, either over an explicit
// rulebook path or over the configured backend
func openGateway(ctx context.Context, rulebookPath string) (*engine.Engine, *gateway.CachedGateway, func(), error) {
	cfg := config.Get()
	if rulebookPath != "" {
		eng, err := bootstrap.NewEngine(cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		gw := gateway.New(rulebook.NewSource(rulebookPath, logger), cfg.Gateway.CacheTTL.Std(), logger)
		return eng, gw, func() {}, nil
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return app.Engine, app.Gateway, func() { app.Close() }, nil
}

func printQuote(w io.Writer, q engine.Quote) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t%.1f m³\t\t\n", q.ServiceType, q.Volume)
	for _, l := range q.Lines {
		fmt.Fprintf(tw, "%s\t%s x %s\t%s\t\n", l.Label, l.Quantity, l.Rate.StringFixed(2), l.Amount.StringFixed(2))
	}
	fmt.Fprintf(tw, "Base cost\t\t%s\t\n", q.BaseCost.StringFixed(2))
	fmt.Fprintf(tw, "Adjustment\t%s%%\t%s\t\n", q.Breakdown.TotalPercentage, q.PercentageAdjustment.StringFixed(2))
	fmt.Fprintf(tw, "Fixed\t\t%s\t\n", q.FixedAdjustment.StringFixed(2))
	fmt.Fprintf(tw, "Total\t\t%s\t\n", q.FinalPrice.StringFixed(2))
	tw.Flush()

	if len(q.Breakdown.AppliedRules) > 0 {
		fmt.Fprintln(w, "\nApplied rules:")
		for _, r := range q.Breakdown.AppliedRules {
			unit := ""
			if r.PercentBased {
				unit = "%"
			}
			fmt.Fprintf(w, "  %-20s %s%s (%s)\n", r.ID, r.Value, unit, r.Condition)
		}
	}
	for _, warn := range q.Breakdown.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}
