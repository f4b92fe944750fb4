package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		if a.cfg.StoreDriver == "memory" {
			return errors.New("the in-memory store has no migrations")
		}
		ctx, err = a.start(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.stop()

		_, db, err := resolve[database.DB](ctx)
		if err != nil {
			return err
		}

		migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
			MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
			Version:             uint(a.cfg.DatabaseMigrationVersion),
			Force:               a.cfg.DatabaseMigrationForce,
			AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
		})
		return migrations.MigratePostgres(db.SQL(), a.cfg.DatabaseName)
	},
}
