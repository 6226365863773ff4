// Package cmd - estimate command
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quote-engine/core/types"
	"quote-engine/core/volume"
	"quote-engine/internal/bootstrap"
	"quote-engine/internal/config"
)

var (
	estimateInput  string
	estimateFormat string
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the volume of a job",
	Long: `Estimate the volume in m³ of a housing description.

The input is an EstimationInput JSON document; "-" reads it from stdin.

Examples:
  quote estimate --input job.json
  quote estimate --input - --format json < job.json`,
	Args: cobra.NoArgs,
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().StringVarP(&estimateInput, "input", "i", "-", "estimation input JSON file")
	estimateCmd.Flags().StringVarP(&estimateFormat, "format", "f", "text", "output format (text, json)")
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	var in types.EstimationInput
	if err := readJSON(estimateInput, &in); err != nil {
		return err
	}

	eng, err := bootstrap.NewEngine(config.Get(), logger)
	if err != nil {
		return err
	}
	detail, err := eng.EstimateVolumeDetailed(in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch estimateFormat {
	case "json":
		return writeJSON(out, detail)
	case "text":
		printDetail(out, detail)
		return nil
	}
	return fmt.Errorf("unknown format %q", estimateFormat)
}

func printDetail(w io.Writer, d volume.Detail) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Surface-based\t%.2f m³\n", d.SurfaceVolume)
	fmt.Fprintf(tw, "Rooms-based\t%.2f m³\n", d.RoomsVolume)
	fmt.Fprintf(tw, "Objects\t%.2f m³\n", d.ObjectsVolume)
	fmt.Fprintf(tw, "Weighted\t%.2f m³\n", d.Weighted)
	fmt.Fprintf(tw, "Density x packing\t%.2f x %.2f\n", d.DensityCoefficient, d.PackingFactor)
	fmt.Fprintf(tw, "Bounds\t[%.1f, %.1f]\n", d.LowerBound, d.UpperBound)
	if d.Clamped {
		fmt.Fprintf(tw, "Clamped\t%.2f -> bounds\n", d.Raw)
	}
	fmt.Fprintf(tw, "Volume\t%.1f m³\n", d.Volume)
	tw.Flush()
}
