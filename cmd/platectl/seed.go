package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"plate-order-backend/internal/seed"
)

var seedOpts seed.Options

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo floor plan with tables and orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, gormDB, err := openStore(cfg, newLogger())
		if err != nil {
			return err
		}
		defer closeDB(gormDB)

		bar := progressbar.NewOptions(seedOpts.Tables+seedOpts.Orders,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("seeding"),
			progressbar.OptionShowCount(),
		)
		res, err := seed.Run(cmd.Context(), st, seedOpts, bar)
		_ = bar.Finish()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nfloor plan %q (id %d): %d tables, %d orders, servers %v\n",
			res.FloorPlan.Name, res.FloorPlan.ID, len(res.Tables), len(res.Orders), res.Servers)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.FloorPlan, "floor-plan", "", "floor plan name (default is a generated one)")
	seedCmd.Flags().IntVar(&seedOpts.Tables, "tables", 10, "number of tables")
	seedCmd.Flags().IntVar(&seedOpts.Orders, "orders", 20, "number of orders")
	seedCmd.Flags().IntVar(&seedOpts.Servers, "servers", 3, "number of servers the orders are spread over")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", time.Now().UnixNano(), "random seed")
}
