package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jainayushgit/store-provisioner/cmd/provisionerd/commands"
	"github.com/Jainayushgit/store-provisioner/logger"
)

var rootCmd = &cobra.Command{
	Use:   "provisionerd",
	Short: "Store provisioner control plane",
	Long: `provisionerd is the control plane for a multi-tenant store provisioning
service: it accepts create/delete requests over HTTP, persists them as durable
work, and drives them to completion through an async job engine backed by
Postgres.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithVerbosity(false, verbosity+logger.VerbosityInfo); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v enables debug logging)")
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
