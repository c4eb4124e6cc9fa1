package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xela07ax/mapasculturais/internal/infra"
	"github.com/xela07ax/mapasculturais/internal/repository/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := infra.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required")
		}

		down := len(args) == 1 && args[0] == "down"
		if err := postgres.Migrate(cfg.Database.URL, down); err != nil {
			return err
		}

		direction := "up"
		if down {
			direction = "down"
		}
		cmd.Printf("migrations applied: %s\n", direction)
		return nil
	},
}
