package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/verdictlabs/verdict/internal/cli"
	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/poller"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <decision-id>",
		Short: "Poll a running server until an application is decided",
		Long: `Poll the decision API for one application until it carries a verdict,
either completed or awaiting human review. Transient server errors are
tolerated; the watch only gives up when the timeout elapses.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().String("server", "", "base URL of the decision API (default http://localhost:8000)")
	cmd.Flags().Duration("interval", 2*time.Second, "polling interval")
	cmd.Flags().Duration("timeout", 5*time.Minute, "give up after this long")
	_ = viper.BindPFlag("client.server", cmd.Flags().Lookup("server"))

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	baseURL := viper.GetString("client.server")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client := poller.NewClient(baseURL)
	app, err := poller.New(client, interval).Wait(ctx, args[0])
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	verdict := fmt.Sprintf("%s: %s (%.0f%% confidence)",
		app.ID, app.ModelOutput.Label, app.ModelOutput.Confidence*100)
	if model.OutcomeForLabel(app.ModelOutput.Label) == model.OutcomePositive {
		fmt.Println(cli.FormatSuccess(verdict))
	} else {
		fmt.Println(cli.FormatError(verdict))
	}
	if app.Explanation.Summary != "" {
		fmt.Println(app.Explanation.Summary)
	}
	if app.Status == model.StatusPendingHuman {
		fmt.Println(cli.FormatWarning("awaiting human review"))
	}
	return nil
}
