package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/finwiz/internal/budget"
	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/spf13/cobra"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Update a user's profile",
		Long: `Update the profile fields of a user. Only the flags you pass are changed.

Link a bank by passing the public token returned by Plaid Link; it is exchanged
for an access token which is stored on the user.`,
		Args: cobra.ExactArgs(1),
		RunE: runProfile,
	}

	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("phone", "", "phone number")
	cmd.Flags().String("address", "", "postal address")
	cmd.Flags().String("employment-status", "", "employment status")
	cmd.Flags().String("access-token", "", "Plaid access token")
	cmd.Flags().String("public-token", "", "Plaid Link public token to exchange for an access token")
	cmd.MarkFlagsMutuallyExclusive("access-token", "public-token")

	return cmd
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}

	update := model.ProfileUpdate{
		Name:             changedString(cmd, "name"),
		PhoneNumber:      changedString(cmd, "phone"),
		Address:          changedString(cmd, "address"),
		EmploymentStatus: changedString(cmd, "employment-status"),
		AccessToken:      changedString(cmd, "access-token"),
	}

	if publicToken := changedString(cmd, "public-token"); publicToken != nil {
		client, clientErr := newPlaidClient()
		if clientErr != nil {
			return clientErr
		}
		accessToken, itemID, exchangeErr := client.ExchangePublicToken(ctx, *publicToken)
		if exchangeErr != nil {
			return fmt.Errorf("failed to link bank: %w", exchangeErr)
		}
		slog.Info("Linked Plaid item", "user_id", userID, "item_id", itemID)
		update.AccessToken = &accessToken
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := budget.NewProvisioner(a.store, a.locks).UpdateProfile(ctx, userID, update); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("Updated profile of user %d", userID)))
	return nil
}

// changedString returns the flag value only when the flag was passed.
func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetString(name)
	return &value
}
