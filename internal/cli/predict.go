package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironsheep/nanospectrum/internal/evaluation"
	"github.com/ironsheep/nanospectrum/internal/imaging"
	"github.com/ironsheep/nanospectrum/internal/predictor"
	"github.com/ironsheep/nanospectrum/internal/spectrum"
)

type predictOutput struct {
	Image string `json:"image"`
	Model string `json:"model"`
	*predictor.Prediction
	CSV string `json:"csv,omitempty"`
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		model  string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "predict IMAGE...",
		Short: "Predict the absorption spectrum of one or more micrographs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			h, err := reg.GetOrLoad(cmd.Context(), model)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, path := range args {
				img, err := imaging.Open(path)
				if err != nil {
					return err
				}
				pred, err := h.PredictImage(img)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				out := predictOutput{Image: path, Model: h.Name(), Prediction: pred}
				if outDir != "" {
					out.CSV = filepath.Join(outDir, h.Name()+"_"+evaluation.SampleID(path)+".csv")
					if err := spectrum.WritePrediction(out.CSV, pred.AsSpectrum()); err != nil {
						return err
					}
				}
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "registered predictor name")
	cmd.Flags().StringVar(&outDir, "outdir", "", "also write <model>_<sample>.csv predictions here")
	cmd.MarkFlagRequired("model")
	return cmd
}
