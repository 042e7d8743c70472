package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdictlabs/verdict/internal/cli"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show decision counts per domain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.DomainStats(ctx)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle("Decisions by domain"))
			fmt.Printf("%-12s %8s %8s %8s %8s\n", "DOMAIN", "TOTAL", "PENDING", "APPROVED", "DENIED")
			for _, tile := range stats {
				fmt.Printf("%-12s %8d %8d %8d %8d\n",
					tile.Domain, tile.Total, tile.Pending, tile.Approved, tile.Denied)
			}
			return nil
		},
	}
}
