package main

import (
	"fmt"

	"github.com/Veraticus/finwiz/internal/category"
	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default category taxonomy",
		Long: `Create the default two-level need/want category taxonomy.

Existing categories are left untouched, so running seed twice is safe.`,
		RunE: runSeed,
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	count, err := category.Seed(ctx, a.store, category.DefaultTaxonomy)
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("Taxonomy ready: %d categories across %d groups", count, len(category.DefaultTaxonomy))))
	return nil
}
