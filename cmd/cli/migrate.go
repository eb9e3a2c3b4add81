package main

import (
	"fmt"

	"github.com/nimasrn/gpu-savings-gateway/internal/config"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var (
		dir    string
		status bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the goose migrations to the write database",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.Get().PostgresWrite()
			if status {
				return pg.MigrationStatus(conf, dir)
			}
			if err := pg.Migrate(conf, dir); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "./migrations", "directory holding the migration files")
	cmd.Flags().BoolVar(&status, "status", false, "print the migration status instead of migrating")
	return cmd
}
