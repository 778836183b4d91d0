package main

import (
	"github.com/spf13/cobra"

	"github.com/listenupapp/catalog-server/internal/domain"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	var (
		book    domain.BookFields
		year    int
		rate    float64
		pricing domain.PricingFields
		policy  policyFlags
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show what importing one record would do, without writing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("year") {
				book.Year = domain.IntPtr(year)
			}
			if cmd.Flags().Changed("rate") {
				pricing.Rate = domain.FloatPtr(rate)
			}

			p := policy.overlay(cmd, a.imports.DefaultPolicy())
			assessment, err := a.catalog.Check(cmd.Context(), book, pricing, p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), assessment)
		},
	}

	f := cmd.Flags()
	f.StringVar(&book.ISBN, "isbn", "", "ISBN")
	f.StringVar(&book.OtherCode, "other-code", "", "other code")
	f.StringVar(&book.Title, "title", "", "title")
	f.StringVar(&book.Author, "author", "", "author")
	f.StringVar(&book.Edition, "edition", "", "edition")
	f.IntVar(&year, "year", 0, "publication year")
	f.StringVar(&book.PublisherName, "publisher", "", "publisher name")
	f.StringVar(&pricing.Source, "source", "", "pricing source")
	f.Float64Var(&rate, "rate", 0, "price")
	f.Float64Var(&pricing.Discount, "discount", 0, "discount")
	f.StringVar(&pricing.Currency, "currency", "", "currency code")
	policy.register(cmd)
	return cmd
}
