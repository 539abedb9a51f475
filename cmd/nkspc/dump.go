package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nksplang/nksp"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <script.nksp>",
		Short: "Print a script's handler table and patch variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			engine := nksp.New(nksp.Options{})
			script, err := engine.LoadScript(string(source), nil)
			if err != nil {
				return err
			}
			defer script.Release()

			out := cmd.OutOrStdout()
			for _, name := range []string{"init", "note", "release", "controller", "rpn", "nrpn"} {
				fmt.Fprintf(out, "handler %-12s %v\n", name, engine.EventHandlerByName(script, name))
			}

			names := script.PatchVariableNames()
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(out, "patch %s\n", n)
			}

			if script.HasErrors() {
				return fmt.Errorf("%s: parse errors found", args[0])
			}
			return nil
		},
	}
	return cmd
}
