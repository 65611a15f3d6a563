package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/Veraticus/finwiz/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

This command ensures your local database has all the required
tables and indexes for the application to function properly.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()
	dbPath := appConfig.Database.Path

	slog.Info("Starting database migration", "database", dbPath, "status_only", status)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if status {
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			cmd.Println(cli.FormatWarning("Database has not been migrated yet"))
			return nil //nolint:nilerr // an unmigrated database is a status, not a failure
		}
		cmd.Println(cli.FormatInfo(fmt.Sprintf("Schema version %d of %d (%s)", version, storage.ExpectedSchemaVersion, dbPath)))
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	cmd.Println(cli.FormatSuccess("Database migrations completed"))
	return nil
}
