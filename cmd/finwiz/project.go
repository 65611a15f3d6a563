package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/spf13/cobra"
)

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project [user-id]",
		Short: "Recompute budget limits from recent income and spending",
		Long: `Recompute every non-fixed bucket's limit from the trailing income and expense
window and write projections for the next two months.

With --preview nothing is written; the command shows what each bucket's
limitation would become and the change from its current value.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProject,
	}

	cmd.Flags().Bool("preview", false, "show the outcome without saving it")
	cmd.Flags().Bool("all", false, "project every user")

	return cmd
}

func runProject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	preview, _ := cmd.Flags().GetBool("preview")
	all, _ := cmd.Flags().GetBool("all")

	if all == (len(args) == 1) {
		return errors.New("pass either a user id or --all")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var userIDs []int64
	if all {
		if userIDs, err = a.store.ListUserIDs(ctx); err != nil {
			return err
		}
	} else {
		userID, parseErr := parseUserID(args[0])
		if parseErr != nil {
			return parseErr
		}
		userIDs = []int64{userID}
	}

	engine := a.engine()
	for _, userID := range userIDs {
		report, err := engine.Project(ctx, userID, preview)
		if err != nil {
			return fmt.Errorf("projection failed for user %d: %w", userID, err)
		}
		cmd.Println(cli.RenderProjection(report))
	}
	return nil
}
