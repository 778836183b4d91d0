package main

import (
	"github.com/spf13/cobra"
)

func newHeadersCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "headers FILE",
		Short: "Show how a spreadsheet's headers map to catalog fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			analysis, err := a.imports.ValidateHeaders(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}
}
