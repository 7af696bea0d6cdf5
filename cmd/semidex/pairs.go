package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"semidex-go/internal/config"
	"semidex-go/internal/database"
)

// NewPairsCmd creates the command that prints the stored pairs.
func NewPairsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pairs",
		Short: "List stored pairs",
		Long: `Print every pair in the database, removed ones included.

Example:
  $ semidex pairs --config ./configs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString(flagConfig)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}

			db, err := database.NewDatabase(cfg.Database.DSN)
			if err != nil {
				return err
			}
			pairs, err := database.NewPairStore(db).LoadPairs(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOKEN A\tTOKEN B\tRATE A->B\tRESERVE A\tRESERVE B\tREMOVED")
			for _, p := range pairs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
					p.ID, p.TokenA, p.TokenB, p.RateAtoB, p.ReserveA, p.ReserveB, p.IsRemoved())
			}
			return w.Flush()
		},
	}
}
