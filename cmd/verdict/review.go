package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdictlabs/verdict/internal/cli"
	"github.com/verdictlabs/verdict/internal/model"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review applications awaiting a human decision",
		Long: `Walk through every application the classifier left for human review and
approve or deny each one. Overriding the classifier triggers a follow-up
explanation of the disagreement in the background.`,
		RunE: runReview,
	}

	cmd.Flags().String("domain", "", "limit the queue to one domain")

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	domain, _ := cmd.Flags().GetString("domain")
	if domain != "" && !model.Domain(domain).Valid() {
		return fmt.Errorf("unknown domain %q", domain)
	}

	engine, store, err := initEngine(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = store.Close() }()

	console := cli.NewConsole(engine, nil, nil)
	if err := console.Run(ctx, model.Domain(domain)); err != nil {
		return err
	}

	// Let any override explanations finish before the process exits.
	engine.Wait()
	return nil
}
