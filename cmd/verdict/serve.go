package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/verdictlabs/verdict/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the decision API server",
		Long: `Start the HTTP API that accepts applications, classifies them with the
configured LLM, and exposes the review and policy endpoints.

Applications that were interrupted mid-classification by a previous shutdown
are picked up again on start.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default :8000)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	engine, store, err := initEngine(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = store.Close() }()

	recovered, err := engine.RecoverPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover pending applications: %w", err)
	}
	if recovered > 0 {
		slog.Info("Re-queued applications from previous run", "count", recovered)
	}

	addr := viper.GetString("server.addr")
	if addr == "" {
		addr = ":8000"
	}

	return server.New(engine, store, addr).ListenAndServe(ctx)
}
