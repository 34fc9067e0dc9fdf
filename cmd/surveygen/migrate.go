package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/surveygen/internal/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the surveys table and its unique index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Database.Driver == database.DriverMemory {
				return fmt.Errorf("the memory driver has no schema to migrate")
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database\n", cfg.Database.Driver)
			return nil
		},
	}
}
