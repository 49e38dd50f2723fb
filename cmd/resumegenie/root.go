package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"resumegenie/internal/shared/config"
	"resumegenie/internal/shared/telemetry"
)

const (
	app = "resumegenie"
)

var (
	// Loaded once in PersistentPreRunE and shared by every subcommand.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "resumegenie scores resumes against job descriptions and sells credits for it",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == versionCmd.Name() {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return setupLogger(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			telemetry.Sync()
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output (overrides LOG_DEBUG)")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging (overrides LOG_JSON)")
}

// setupLogger applies LOG_JSON/LOG_DEBUG unless the flags were given explicitly.
func setupLogger(cmd *cobra.Command) error {
	jsonLogs := cfg.LogJSON
	debug := cfg.LogDebug
	if cmd.Flags().Changed("json") {
		jsonLogs, _ = cmd.Flags().GetBool("json")
	}
	if cmd.Flags().Changed("debug") {
		debug, _ = cmd.Flags().GetBool("debug")
	}

	logger, err := telemetry.New(jsonLogs, debug)
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	telemetry.SetLogger(logger)
	return nil
}
