package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"resumegenie/internal/bootstrap"
	httpserver "resumegenie/internal/server"
	"resumegenie/internal/shared/server"
	"resumegenie/internal/shared/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		return serve(cmd.Context(), shutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Duration("shutdown-timeout", 15*time.Second, "how long to wait for in-flight requests on shutdown")
}

func serve(parent context.Context, shutdownTimeout time.Duration) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("serve.bootstrap_failed", map[string]any{"error": err})
		return err
	}

	srv := httpserver.New(a.Router, server.Addr(cfg.Port), shutdownTimeout)
	srv.OnShutdown("app", func(context.Context) error {
		return a.Close()
	})

	telemetry.Info("serve.starting", map[string]any{
		"version": version,
		"env":     cfg.Env,
		"addr":    srv.Addr(),
	})
	return srv.Run(ctx)
}
