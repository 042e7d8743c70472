package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/verdictlabs/verdict/internal/cli"
	"github.com/verdictlabs/verdict/internal/ingest"
	"github.com/verdictlabs/verdict/internal/model"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one application and wait for its classification",
		Example: `  verdict submit --domain loan --file application.json
  verdict submit --domain job --set applicant_name="Ada Lovelace" --set skill_score=88 --set experience_years=12`,
		RunE: runSubmit,
	}

	cmd.Flags().String("domain", "", "application domain (loan, credit, insurance, job)")
	cmd.Flags().String("file", "", "JSON file with the application features")
	cmd.Flags().StringArray("set", nil, "feature as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	domain, _ := cmd.Flags().GetString("domain")
	file, _ := cmd.Flags().GetString("file")
	pairs, _ := cmd.Flags().GetStringArray("set")

	input, err := collectInput(file, pairs)
	if err != nil {
		return err
	}

	engine, store, err := initEngine(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = store.Close() }()

	app, err := engine.Submit(ctx, model.Domain(domain), input)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle("Application " + app.ID + " submitted"))
	engine.Wait()

	app, err = engine.Get(ctx, app.ID)
	if err != nil {
		return err
	}

	switch {
	case app.Status == model.StatusPendingAI:
		fmt.Println(cli.FormatError("Classification failed: " + app.LastError))
	case app.AIResult != nil:
		verdict := fmt.Sprintf("%s (%.0f%% confidence)",
			app.ModelOutput.Label, app.ModelOutput.Confidence*100)
		if app.Status == model.StatusPendingHuman {
			fmt.Println(cli.FormatWarning("Needs human review: " + verdict))
		} else {
			fmt.Println(cli.FormatSuccess("Decision: " + verdict))
		}
		fmt.Println(app.AIResult.Decision.Reasoning)
	}
	return nil
}

// collectInput merges the optional JSON file with --set overrides.
func collectInput(file string, pairs []string) (map[string]any, error) {
	input := make(map[string]any)

	if file != "" {
		data, err := os.ReadFile(file) //nolint:gosec // user-supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", file, err)
		}
	}

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", pair)
		}
		input[key] = value
	}

	if len(input) == 0 {
		return nil, fmt.Errorf("no input: provide --file or --set")
	}
	return input, nil
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Submit a CSV or JSON file of applications",
		Long: `Submit every row of a CSV file (with a header line) or every element of a
JSON array as its own application. Rows that fail validation are reported and
skipped; the rest of the batch proceeds.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	cmd.Flags().String("domain", "", "application domain (loan, credit, insurance, job)")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	domain, _ := cmd.Flags().GetString("domain")

	data, err := os.ReadFile(args[0]) //nolint:gosec // user-supplied path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	rows, err := ingest.ParseApplications(data, ingest.FormatForFilename(args[0]))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s contains no applications", args[0])
	}

	engine, store, err := initEngine(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetDescription("Submitting applications"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	result, err := engine.SubmitBatch(ctx, model.Domain(domain), rows, func(int) {
		_ = bar.Add(1)
	})
	if err != nil {
		return err
	}

	engine.Wait()

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Submitted %d application(s)", result.Submitted)))
	for _, rowErr := range result.Errors {
		fmt.Println(cli.FormatError(fmt.Sprintf("row %d: %s", rowErr.Row, rowErr.Error)))
	}
	return nil
}
