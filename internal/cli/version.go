package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxbatch/internal/version"
)

func newVersionCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		// Printing the version must work without a usable config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current()
			if detailed {
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "voxbatch v%s\n", info.Version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&detailed, "detailed", false, "Include commit, build date and platform")
	return cmd
}
