package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"resumegenie/internal/shared/storage/db"
	"resumegenie/internal/shared/telemetry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required")
		}

		ctx := cmd.Context()
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			telemetry.Error("migrate.failed", map[string]any{"error": err})
			return err
		}
		telemetry.Info("migrate.done", nil)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
