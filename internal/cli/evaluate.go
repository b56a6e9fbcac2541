package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/nanospectrum/internal/evaluation"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		models  []string
		dataDir string
		outDir  string
		peakTol float64
		workers int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score registered predictors against the samples in a data directory",
		Long: `Runs every selected predictor on every image found under --data and writes
predictions, a per-sample results table and a summary into a new run
directory under --outdir.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("outdir") {
				a.cfg.Evaluation.OutputRoot = outDir
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Evaluation.Workers = workers
			}
			if !cmd.Flags().Changed("peak-tol") {
				peakTol = a.cfg.Evaluation.ToleranceNM
			}

			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.orchestrator(reg).Run(cmd.Context(), models, dataDir, peakTol)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Evaluation complete. Saved to %s\n", summary.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&models, "models", []string{evaluation.AllPredictors}, "predictor names or 'all'")
	cmd.Flags().StringVar(&dataDir, "data", "", "data directory")
	cmd.Flags().StringVar(&outDir, "outdir", "", "parent of the run directory (default from config)")
	cmd.Flags().Float64Var(&peakTol, "peak-tol", 5.0, "peak tolerance (nm)")
	cmd.Flags().IntVar(&workers, "workers", 1, "samples evaluated concurrently")
	cmd.MarkFlagRequired("data")
	return cmd
}
