package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nksplang/nksp"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens <script.nksp>",
		Short: "Print a script's syntax tokens with byte-accurate spans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			engine := nksp.New(nksp.Options{})
			out := cmd.OutOrStdout()
			for _, t := range engine.SyntaxTokens(string(source)) {
				fmt.Fprintf(out, "%-20s %-8d %q\n", t.Kind, t.Span.FirstByte, t.Text)
			}
			return nil
		},
	}
	return cmd
}
