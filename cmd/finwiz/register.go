package main

import (
	"fmt"

	"github.com/Veraticus/finwiz/internal/budget"
	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/spf13/cobra"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Onboard a user",
		Long: `Create a user with one empty budget bucket per top-level category and
zeroed projections for the next two months.

Run "finwiz seed" first so the categories exist.`,
		RunE: runRegister,
	}

	cmd.Flags().String("email", "", "user email (required)")
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("phone", "", "phone number")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runRegister(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	phone, _ := cmd.Flags().GetString("phone")

	if email == "" {
		return common.Validationf("--email is required")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	user := &model.User{Email: email, Name: name, PhoneNumber: phone}
	if err := budget.NewProvisioner(a.store, a.locks).RegisterUser(ctx, user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("Registered %s as user %d", email, user.ID)))
	return nil
}
