package main

import (
	"fmt"
	"os"

	"github.com/nimasrn/gpu-savings-gateway/internal/config"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envPath string
	root := &cobra.Command{
		Use:           "gopt",
		Short:         "GPU savings gateway administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(envPath)
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "path to an env file; skipped when missing")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newCustomerCmd())
	return root
}

func loadConfig(path string) error {
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	if err := config.Load(path); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

func openDB() (*pg.DB, error) {
	cfg := config.Get()
	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), false)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}
