// Package cmd - migrate command
package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"quote-engine/adapters/postgres"
	"quote-engine/internal/bootstrap"
	"quote-engine/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Run the Postgres schema migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(postgres.Up), string(postgres.Down), string(postgres.Status)},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dir := postgres.Up
	if len(args) == 1 {
		dir = postgres.Direction(args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	db, err := bootstrap.OpenPostgres(ctx, config.Get(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return postgres.Migrate(ctx, db, dir, logger)
}
