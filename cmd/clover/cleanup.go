package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/admin"
	"github.com/Ramsey-B/clover/internal/datasets"
	"github.com/Ramsey-B/clover/pkg/docstore"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete every document in a tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		tierName, err := cmd.Flags().GetString("tier")
		if err != nil {
			return fmt.Errorf("failed to get tier flag: %w", err)
		}
		confirm, err := cmd.Flags().GetBool("confirm")
		if err != nil {
			return fmt.Errorf("failed to get confirm flag: %w", err)
		}
		collections, err := cmd.Flags().GetStringSlice("collection")
		if err != nil {
			return fmt.Errorf("failed to get collection flag: %w", err)
		}
		tier, err := docstore.ParseTier(tierName)
		if err != nil {
			return err
		}
		if len(collections) == 0 {
			for _, ns := range datasets.Namespaces(tier) {
				collections = append(collections, ns.Collection)
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, err = a.start(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.stop()

		ctx, logger, err := resolve[ectologger.Logger](ctx)
		if err != nil {
			return err
		}
		ctx, stores, err := resolve[docstore.Provider](ctx)
		if err != nil {
			return err
		}

		result, err := admin.NewCleaner(stores, logger).Cleanup(ctx, admin.CleanupRequest{
			Tier:        tier,
			Collections: collections,
			Confirm:     confirm,
		})
		for collection, deleted := range result.Deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "%s.%s: %d deleted\n", tier, collection, deleted)
		}
		return err
	},
}

func init() {
	cleanupCmd.Flags().String("tier", "", "extraction, staging or production")
	cleanupCmd.Flags().Bool("confirm", false, "required to clean the production tier")
	cleanupCmd.Flags().StringSlice("collection", nil, "collections to clean (default: every known collection)")
	_ = cleanupCmd.MarkFlagRequired("tier")
}
