package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newReportsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse archived import reports",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List import reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := a.imports.ListReports(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tFILE\tTOTAL\tSUCCESSFUL\tCONFLICTS\tERRORS")
			for _, r := range page.Reports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.FileName,
					r.Summary.TotalProcessed, r.Summary.Successful, r.Summary.Conflicts, r.Summary.Errors)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d reports\n", len(page.Reports), page.Total)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "reports per page")
	list.Flags().IntVar(&offset, "offset", 0, "reports to skip")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print one import report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.imports.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
