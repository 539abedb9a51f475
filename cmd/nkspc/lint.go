package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nksplang/nksp"
)

func newLintCmd() *cobra.Command {
	var conditions []string

	cmd := &cobra.Command{
		Use:   "lint <script.nksp>",
		Short: "Parse a script and print its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			engine := nksp.New(nksp.Options{HostConditions: conditions})
			script, err := engine.LoadScript(string(source), nil)
			if err != nil {
				return err
			}

			for _, d := range script.Diagnostics {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%d:%d: %s: %s\n",
					args[0], d.Span.FirstLine, d.Span.FirstColumn, d.Kind, d.Message)
			}
			script.Release()

			if script.HasErrors() {
				return fmt.Errorf("%s: parse errors found", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&conditions, "condition", nil, "seed an active preprocessor condition (repeatable)")
	return cmd
}
