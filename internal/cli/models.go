package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ironsheep/nanospectrum/internal/predictor"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the predictor registry",
	}
	cmd.AddCommand(newModelsListCmd(a), newModelsRegisterCmd(a))
	return cmd
}

func newModelsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered predictors",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			names, err := reg.Names()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPATH\tORIGIN\tREGISTERED")
			for _, name := range names {
				meta, err := reg.Metadata(name)
				if err != nil {
					a.logger.Warn("unreadable predictor metadata", "name", name, "error", err)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", meta.ModelName, meta.Path, meta.Origin, meta.RegisteredAt)
			}
			return tw.Flush()
		},
	}
}

func newModelsRegisterCmd(a *app) *cobra.Command {
	var meta predictor.Metadata

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a predictor weight artifact under a name",
		Long: `Writes <registry>/<name>.json pointing at the weight artifact. The artifact
itself is not copied; relative paths resolve against the storage root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			p, err := reg.Register(meta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s -> %s\n", meta.ModelName, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&meta.ModelName, "name", "", "predictor name")
	cmd.Flags().StringVar(&meta.Path, "path", "", "weight artifact path")
	cmd.Flags().StringVar(&meta.Origin, "origin", "", "where the weights came from")
	cmd.Flags().StringVar(&meta.Notes, "notes", "", "free-form notes")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("path")
	return cmd
}
