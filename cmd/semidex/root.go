package main

import (
	"github.com/spf13/cobra"
)

const flagConfig = "config"

// NewRootCmd creates the semidex command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "semidex",
		Short:        "Fixed-rate token swap service",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(flagConfig, "./configs", "directory containing config.yml")

	rootCmd.AddCommand(
		NewServeCmd(),
		NewPairsCmd(),
	)

	return rootCmd
}
