package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironsheep/nanospectrum/internal/detection"
)

func newDigitizeCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "digitize FIGURE|DIR",
		Short: "Split composite figures into micrographs and digitized reference curves",
		Long: `Each figure is split at its vertical midline. Micrograph halves are saved
as <base>_<pos>.png and plot halves are digitized to <base>_<pos>.csv
with a debug crop, so the outputs pair up for evaluation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			var results []*detection.FigureResult
			if info.IsDir() {
				results, err = detection.ProcessFigures(args[0], outDir, a.cfg.Figure(), a.logger)
				if err != nil {
					return err
				}
			} else {
				res, err := detection.ProcessFigure(args[0], outDir, a.cfg.Figure())
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			w := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(w, "%s\n", filepath.Base(r.Source))
				for _, p := range r.Panels {
					line := fmt.Sprintf("  %-5s %s", p.Position, p.Analysis.Class)
					switch {
					case p.ImagePath != "":
						line += " -> " + p.ImagePath
					case p.CurvePath != "":
						line += fmt.Sprintf(" -> %s (%s)", p.CurvePath, p.Source)
					case p.Note != "":
						line += " (" + p.Note + ")"
					}
					fmt.Fprintln(w, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", filepath.Join("data", "experimental_processed"), "output directory")
	return cmd
}
