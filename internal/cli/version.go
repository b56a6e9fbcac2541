package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "nanospectrum %s\n", a.build.Version)
			fmt.Fprintf(w, "  Build time: %s\n", a.build.BuildTime)
			fmt.Fprintf(w, "  Git commit: %s\n", a.build.GitCommit)
		},
	}
}
