package main

import (
	"fmt"

	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/spf13/cobra"
)

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications <user-id>",
		Short: "List a user's budget notifications",
		Args:  cobra.ExactArgs(1),
		RunE:  runNotifications,
	}

	cmd.Flags().Bool("unread", false, "only show unread notifications")
	cmd.Flags().StringSlice("mark-read", nil, "mark the given notification ids as read")

	return cmd
}

func runNotifications(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	unread, _ := cmd.Flags().GetBool("unread")
	markRead, _ := cmd.Flags().GetStringSlice("mark-read")

	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	for _, id := range markRead {
		if err := a.store.MarkNotificationRead(ctx, userID, id); err != nil {
			return fmt.Errorf("failed to mark notification %s read: %w", id, err)
		}
	}
	if len(markRead) > 0 {
		cmd.Println(cli.FormatSuccess(fmt.Sprintf("Marked %d notifications read", len(markRead))))
		return nil
	}

	notifications, err := a.store.ListNotifications(ctx, userID, unread)
	if err != nil {
		return err
	}
	cmd.Println(cli.RenderNotifications(notifications))
	return nil
}
