package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weighttracker/internal/adapter/postgres"
	"weighttracker/internal/config"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply or roll back the PostgreSQL schema. The sqlite store creates its
schema when opened and the memory store has none.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if c.cfg.StoreDriver != config.DriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=postgres, got %q", c.cfg.StoreDriver)
			}
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all up migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.MigrateUp(c.cfg.Database.DSN())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.MigrateDown(c.cfg.Database.DSN())
			},
		},
	)
	return cmd
}
