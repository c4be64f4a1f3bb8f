package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, gormDB, err := openStore(cfg, newLogger())
		if err != nil {
			return err
		}
		defer closeDB(gormDB)
		fmt.Fprintf(cmd.OutOrStdout(), "database migrated (%s)\n", cfg.Database.Driver)
		return nil
	},
}
