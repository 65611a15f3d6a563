package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/finwiz/internal/cli"
	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/config"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// appConfig is populated by initConfig before any command runs.
	appConfig *config.Config
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "finwiz",
		Short: "💰 Transaction sync and category budgeting",
		Long: `finwiz pulls transactions from Plaid, sorts them into need/want categories,
keeps running budget balances and projects next months' spending limits.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd, cfgFile)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/finwiz/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("db", "", "database path (overrides database.path)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	interrupts := cli.NewInterruptHandler(os.Stderr)
	ctx := interrupts.HandleInterrupts(context.Background(), "")

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, cfgFile string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}

	// Bind flags to viper
	flags := cmd.Root().PersistentFlags()
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", flags.Lookup("log-format"))
	if db, _ := flags.GetString("db"); db != "" {
		v.Set("database.path", db)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	level, err := common.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if err := common.SetupLogger(level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	appConfig = cfg
	slog.Debug("Configuration loaded", "database", cfg.Database.Path, "config_file", v.ConfigFileUsed())
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("finwiz " + version)
		},
	}
}
