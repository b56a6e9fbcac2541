package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ironsheep/nanospectrum/internal/imaging"
	"github.com/ironsheep/nanospectrum/internal/morphology"
)

func newExtractCmd(a *app) *cobra.Command {
	var debugPath string

	cmd := &cobra.Command{
		Use:   "extract IMAGE",
		Short: "Print the particle morphology features of a micrograph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := imaging.Open(args[0])
			if err != nil {
				return err
			}
			res, err := morphology.Extract(img, a.cfg.Morphology)
			if err != nil {
				return err
			}

			if debugPath != "" {
				overlay, err := morphology.Overlay(img, a.cfg.Morphology)
				if err != nil {
					return err
				}
				if err := imaging.Save(overlay, debugPath); err != nil {
					return err
				}
				a.logger.Info("overlay written", "path", debugPath)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&debugPath, "debug", "", "write the contour overlay PNG to this path")
	return cmd
}
