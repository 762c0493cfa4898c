package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/anchor-orchestrator/pkg/migrations/rundb"
	"github.com/chainsafe/anchor-orchestrator/pkg/pgutil"
	mghelper "github.com/chainsafe/anchor-orchestrator/pkg/pgutil/migrations"
)

var migrateCommands = []string{"init", "up", "down", "status"}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate {init|up|down|status}",
		Short:     "Manage the run history database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := pgutil.ConnectDB(cmd.Context(), &cfg.Database)
			if err != nil {
				return fmt.Errorf("error connecting to database: %w", err)
			}
			defer db.Close()

			log.Printf("Running migrations for run history database (%s)...\n", cfg.Database.Database)

			migrator := migrate.NewMigrator(db, rundb.Migrations)
			return mghelper.RunMigrations(cmd.Context(), migrator, args[0], cmd.OutOrStdout())
		},
	}
}
