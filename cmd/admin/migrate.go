package main

import (
	"os/signal"
	"syscall"

	"github.com/adcp/salesagent/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := db.NewPostgresPool(ctx, db.PostgresOptions{
			DSN:             cfg.PostgresDSN,
			MaxConns:        2,
			ApplicationName: "salesagent-admin",
			PingAttempts:    5,
		}, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		return db.RunMigrations(ctx, pool, cfg.MigrationsDir, log)
	},
}
