package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nkspc",
		Short: "Lint and inspect NKSP scripts",
	}
	cmd.AddCommand(newLintCmd())
	cmd.AddCommand(newDumpCmd())
	cmd.AddCommand(newTokensCmd())
	return cmd
}
