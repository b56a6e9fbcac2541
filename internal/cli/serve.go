package cli

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/nanospectrum/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the toolkit as MCP tools over stdin/stdout",
		Long: `Starts a JSON-RPC 2.0 (MCP) server on stdin/stdout. Logs go to stderr.
Configure it in your MCP client as a stdio server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}

			server.Version = a.build.Version
			srv := server.New(server.Deps{
				Models:      reg,
				Evaluator:   a.orchestrator(reg),
				Morphology:  a.cfg.Morphology,
				Figure:      a.cfg.Figure(),
				ToleranceNM: a.cfg.Evaluation.ToleranceNM,
				Logger:      a.logger,
			})

			a.logger.Debug("serving", "version", a.build.Version, "commit", a.build.GitCommit)
			return srv.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
