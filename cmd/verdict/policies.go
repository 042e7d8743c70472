package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verdictlabs/verdict/internal/cli"
	"github.com/verdictlabs/verdict/internal/ingest"
	"github.com/verdictlabs/verdict/internal/model"
)

func policiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Manage the decision policies fed to the classifier",
	}

	cmd.AddCommand(policiesListCmd())
	cmd.AddCommand(policiesAddCmd())
	cmd.AddCommand(policiesDeleteCmd())
	cmd.AddCommand(policiesImportCmd())

	return cmd
}

func policiesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all policies by domain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			all, err := store.ListAllPolicies(ctx)
			if err != nil {
				return err
			}

			for _, domain := range model.PolicyDomains {
				policies := all[domain]
				fmt.Println(cli.FormatTitle(fmt.Sprintf("%s (%d)", domain, len(policies))))
				for _, p := range policies {
					fmt.Printf("  %s  %s\n", p.ID, p.Text)
				}
			}
			return nil
		},
	}
}

func policiesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add one policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain, _ := cmd.Flags().GetString("domain")
			if !model.ValidPolicyDomain(model.Domain(domain)) {
				return fmt.Errorf("unknown policy domain %q", domain)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			policy, err := store.AddPolicy(ctx, model.Domain(domain), args[0])
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added policy %s to %s", policy.ID, policy.Domain)))
			return nil
		},
	}

	cmd.Flags().String("domain", string(model.DomainGlobal), "policy domain (global applies everywhere)")
	return cmd
}

func policiesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain, _ := cmd.Flags().GetString("domain")
			if !model.ValidPolicyDomain(model.Domain(domain)) {
				return fmt.Errorf("unknown policy domain %q", domain)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeletePolicy(ctx, model.Domain(domain), args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Deleted policy " + args[0]))
			return nil
		},
	}

	cmd.Flags().String("domain", string(model.DomainGlobal), "policy domain the id belongs to")
	return cmd
}

func policiesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import policies from a text, CSV, or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain, _ := cmd.Flags().GetString("domain")
			if !model.ValidPolicyDomain(model.Domain(domain)) {
				return fmt.Errorf("unknown policy domain %q", domain)
			}

			data, err := os.ReadFile(args[0]) //nolint:gosec // user-supplied path
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			lines, err := ingest.ParsePolicies(data, ingest.FormatForFilename(args[0]))
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return fmt.Errorf("%s contains no policies", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, line := range lines {
				if _, err := store.AddPolicy(ctx, model.Domain(domain), line); err != nil {
					return err
				}
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d policies into %s", len(lines), domain)))
			return nil
		},
	}

	cmd.Flags().String("domain", string(model.DomainGlobal), "policy domain to import into")
	return cmd
}
