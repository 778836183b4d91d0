package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/importer"
	"github.com/listenupapp/catalog-server/internal/service"
)

// policyFlags overlays explicitly set policy flags onto a default policy.
type policyFlags struct {
	skipDuplicates bool
	skipConflicts  bool
	updateExisting bool
}

func (p *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.skipDuplicates, "skip-duplicates", true, "leave duplicates out of the review list")
	cmd.Flags().BoolVar(&p.skipConflicts, "skip-conflicts", true, "leave conflicts out of the review list")
	cmd.Flags().BoolVar(&p.updateExisting, "update-existing", false, "apply conflicting values to existing books")
}

func (p *policyFlags) overlay(cmd *cobra.Command, base domain.Policy) domain.Policy {
	if cmd.Flags().Changed("skip-duplicates") {
		base.SkipDuplicates = p.skipDuplicates
	}
	if cmd.Flags().Changed("skip-conflicts") {
		base.SkipConflicts = p.skipConflicts
	}
	if cmd.Flags().Changed("update-existing") {
		base.UpdateExisting = p.updateExisting
	}
	return base
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var (
		source  string
		mapping map[string]string
		asJSON  bool
		policy  policyFlags
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a CSV or Excel spreadsheet into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p := policy.overlay(cmd, a.imports.DefaultPolicy())
			req := service.ImportRequest{
				Path:   args[0],
				Source: source,
				Policy: &p,
			}
			if len(mapping) > 0 {
				req.Mapping = mapping
			}

			report, err := a.imports.ImportFile(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), report)
			}
			if report.Cancelled {
				return errors.New("import cancelled")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "pricing source for rows without one (default: file name)")
	cmd.Flags().StringToStringVar(&mapping, "map", nil, "explicit header mapping, e.g. --map \"Book Name=title\"")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	policy.register(cmd)
	return cmd
}

func printSummary(w io.Writer, r *importer.Report) {
	fmt.Fprintf(w, "Import %s (%s)\n", r.ID, r.FileName)
	fmt.Fprintf(w, "  total:      %d\n", r.Stats.Total)
	fmt.Fprintf(w, "  inserted:   %d\n", r.Stats.Inserted)
	fmt.Fprintf(w, "  updated:    %d\n", r.Stats.Updated)
	fmt.Fprintf(w, "  skipped:    %d\n", r.Stats.Skipped)
	fmt.Fprintf(w, "  duplicates: %d\n", r.Stats.Duplicates)
	fmt.Fprintf(w, "  conflicts:  %d\n", r.Stats.Conflicts)
	fmt.Fprintf(w, "  errors:     %d\n", r.Stats.Errors)
	if len(r.PendingReview) > 0 {
		fmt.Fprintf(w, "  pending review: %d\n", len(r.PendingReview))
	}
	if r.LogFile != "" {
		fmt.Fprintf(w, "Audit log: %s\n", r.LogFile)
	}
}
