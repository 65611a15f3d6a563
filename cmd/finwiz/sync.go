package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/Veraticus/finwiz/internal/plaid"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [user-id]",
		Short: "Pull new transactions from Plaid",
		Long: `Fetch every transaction change since the user's last sync, categorize it and
update the budget buckets and balances.

The sync resumes from the stored cursor, so an interrupted run can simply be
started again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSync,
	}

	cmd.Flags().Bool("all", false, "sync every user")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	all, _ := cmd.Flags().GetBool("all")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	if all == (len(args) == 1) {
		return errors.New("pass either a user id or --all")
	}

	client, err := newPlaidClient()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.connectPublisher(); err != nil {
		return err
	}

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

	var failed int
	for _, userID := range userIDs {
		if err := syncUser(cmd, a, client, userID, !noProgress); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			cmd.PrintErrln(cli.FormatError(fmt.Sprintf("User %d: %v", userID, err)))
		}
	}

	if failed > 0 {
		return fmt.Errorf("sync failed for %d of %d users", failed, len(userIDs))
	}
	return nil
}

func syncUser(cmd *cobra.Command, a *app, client plaid.TransactionSyncer, userID int64, showProgress bool) error {
	opts := appConfig.SyncOptions()

	var progress *cli.SyncProgress
	if showProgress {
		progress = cli.NewSyncProgress(cmd.ErrOrStderr())
		opts.OnPage = progress.OnPage
	}

	orch, err := a.orchestrator(client, opts)
	if err != nil {
		return err
	}

	result, err := orch.Sync(cmd.Context(), userID)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		if result != nil {
			slog.Warn("Partial sync", "user_id", userID, "pages", result.Pages, "created", result.Created)
		}
		return err
	}

	cmd.Println(cli.RenderSyncResult(result))
	return nil
}
