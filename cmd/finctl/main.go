package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/wealthwizard/finance-api/cmd/finctl/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "finctl",
		Short:         "Operator tools for the finance API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.AutoContributeCmd())
	rootCmd.AddCommand(cmd.ReportsCmd())
	rootCmd.AddCommand(cmd.InsightsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
