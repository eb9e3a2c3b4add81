package main

import (
	"encoding/json"
	"fmt"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/nimasrn/gpu-savings-gateway/internal/services"
	"github.com/spf13/cobra"
)

func newCustomerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customers",
	}
	cmd.AddCommand(newCustomerCreateCmd(), newCustomerStatsCmd())
	return cmd
}

func newCustomerCreateCmd() *cobra.Command {
	var email, tier string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a customer and print its api key",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseTier(tier)
			if err != nil {
				return err
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			svc := services.NewCustomerService(repository.NewCustomerRepository(db))
			c, err := svc.Create(cmd.Context(), email, t)
			if err != nil {
				return fmt.Errorf("create customer: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "customer %d (%s, %s)\napi key: %s\n", c.ID, c.Email, c.Tier, c.APIKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "customer email")
	cmd.Flags().StringVar(&tier, "tier", string(model.TierFree), "free, professional or enterprise")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newCustomerStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print revenue statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			stats, err := services.NewCustomerService(repository.NewCustomerRepository(db)).Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
