// Package cmd - rule management commands
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quote-engine/adapters/export"
	"quote-engine/adapters/postgres"
	"quote-engine/adapters/rulebook"
	"quote-engine/core/gateway"
	"quote-engine/core/types"
	"quote-engine/internal/bootstrap"
	"quote-engine/internal/config"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Pricing rule management",
	Long: `Pricing rule management commands.

Rules are authored as HCL rulebooks, validated locally, and pushed to the
Postgres backend. Pushing clears the shared Redis snapshot when it is
enabled; each instance picks up changes when its own cache expires or
after POST /v1/rules/invalidate.`,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <rulebook>",
	Short: "Validate an HCL rulebook file or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesValidate,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rules of a service type",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesPushCmd = &cobra.Command{
	Use:   "push <rulebook>",
	Short: "Import a rulebook into the Postgres backend",
	Long: `Validate a rulebook and upsert its rules and base constants into Postgres
in one transaction. Rules are keyed by (category, name); an existing rule
gets its version bumped. Nothing is written if any rule is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesPush,
}

var rulesExportCmd = &cobra.Command{
	Use:   "export <out.xlsx>",
	Short: "Export the current configuration as an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesExport,
}

var (
	rulesService  string
	rulesRulebook string
	rulesDryRun   bool
	rulesTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd, rulesListCmd, rulesPushCmd, rulesExportCmd)

	rulesCmd.PersistentFlags().DurationVar(&rulesTimeout, "timeout", time.Minute, "timeout for backend operations")

	rulesListCmd.Flags().StringVarP(&rulesService, "service", "s", "MOVING", "service type")
	rulesListCmd.Flags().StringVar(&rulesRulebook, "rulebook", "", "read this HCL rulebook instead of the configured backend")
	rulesExportCmd.Flags().StringVar(&rulesRulebook, "rulebook", "", "read this HCL rulebook instead of the configured backend")
	rulesPushCmd.Flags().BoolVar(&rulesDryRun, "dry-run", false, "validate only, no database writes")
}

// loadRulebook parses and validates a rulebook into a snapshot
func loadRulebook(path string) (*gateway.Snapshot, error) {
	doc, err := rulebook.ParseFiles(path)
	if err != nil {
		return nil, err
	}
	return gateway.NewSnapshot(doc.Rules, doc.Constants, time.Now().UTC(), logger, doc.RuleErrors...)
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	snap, err := loadRulebook(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d rules accepted, %d rejected, %d service types priced\n",
		len(snap.Rules), len(snap.Rejected), len(snap.Constants))
	for _, rej := range snap.Rejected {
		fmt.Fprintf(out, "  rejected %s: %s\n", rej.RuleID, rej.Reason)
	}
	fmt.Fprintf(out, "version %s\n", snap.Version)

	if len(snap.Rejected) > 0 {
		return fmt.Errorf("%d rules rejected", len(snap.Rejected))
	}
	return nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	st, ok := types.ParseServiceType(rulesService)
	if !ok {
		return fmt.Errorf("unknown service type %q", rulesService)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rulesTimeout)
	defer cancel()

	_, gw, closeFn, err := openGateway(ctx, rulesRulebook)
	if err != nil {
		return err
	}
	defer closeFn()

	rs, err := gw.GetActiveRules(ctx, st)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tVALUE\tCONDITION")
	for _, r := range rs {
		value := r.Value.String()
		if r.PercentBased {
			value += "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Category, value, r.Condition)
	}
	return tw.Flush()
}

func runRulesPush(cmd *cobra.Command, args []string) error {
	snap, err := loadRulebook(args[0])
	if err != nil {
		return err
	}
	if len(snap.Rejected) > 0 {
		for _, rej := range snap.Rejected {
			fmt.Fprintf(cmd.ErrOrStderr(), "rejected %s: %s\n", rej.RuleID, rej.Reason)
		}
		return fmt.Errorf("refusing to push: %d rules rejected", len(snap.Rejected))
	}
	if rulesDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d rules and %d service types would be pushed\n",
			len(snap.Rules), len(snap.Constants))
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rulesTimeout)
	defer cancel()

	db, err := bootstrap.OpenPostgres(ctx, config.Get(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.NewStore(db, logger).Import(ctx, snap.Rules, snap.Constants); err != nil {
		return err
	}
	if err := bootstrap.InvalidateShared(ctx, config.Get(), logger); err != nil {
		logger.Warn("rulebook pushed but the shared snapshot was not cleared", zap.Error(err))
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; instances keep the old rules until the cache expires\n", err)
	}
	logger.Info("rulebook pushed",
		zap.String("path", args[0]),
		zap.Int("rules", len(snap.Rules)),
		zap.String("version", snap.Version))
	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d rules (version %s)\n", len(snap.Rules), snap.Version)
	return nil
}

func runRulesExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rulesTimeout)
	defer cancel()

	_, gw, closeFn, err := openGateway(ctx, rulesRulebook)
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := gw.Snapshot(ctx)
	if err != nil {
		return err
	}
	body, err := export.SnapshotWorkbook(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(args[0], body, 0644)
}
