package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nursetrack/clinical-hours/config"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/postgres"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/sqlite"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back schema migrations",
	Long: `Apply every pending migration of the configured store. With --down,
roll back the most recent PostgreSQL migration. The memory store has no schema.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back the latest migration (postgres only)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	n, err := migrate(ctx, cfg, migrateDown)
	if err != nil {
		return err
	}
	if migrateDown {
		fmt.Fprintf(out, "rolled back %d migration(s) on %s\n", n, cfg.Store.Driver)
	} else {
		fmt.Fprintf(out, "applied %d migration(s) on %s\n", n, cfg.Store.Driver)
	}
	return nil
}

func migrate(ctx context.Context, cfg *config.Config, down bool) (int, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return 0, nil

	case config.DriverSQLite:
		if down {
			return 0, fmt.Errorf("rollback is not supported on sqlite")
		}
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return 0, fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()
		return db.Migrate(ctx)

	case config.DriverPostgres:
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg))
		if err != nil {
			return 0, fmt.Errorf("connect to postgres: %w", err)
		}
		defer conn.Close()
		m := postgres.NewMigrator(conn)
		if down {
			return m.Rollback(ctx)
		}
		return m.Migrate(ctx)
	}
	return 0, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
