package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/bunx"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the drinks schema and its migrations.`,
}

// withMigrator opens the configured database for the duration of fn.
func withMigrator(fn func(db *bun.DB, m *migrate.Migrator) error) error {
	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxOpenConns(cfg.MaxDBConnections))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer bunx.Close(db)

	return fn(db, migrate.NewMigrator(db, migrations.Migrations))
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize migration tables",
	Long:  `Creates the migration tracking tables. db migrate does this too; run it alone to prepare an empty database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(_ *bun.DB, m *migrate.Migrator) error {
			if err := m.Init(cmd.Context()); err != nil {
				return fmt.Errorf("failed to initialize migrator: %w", err)
			}
			slog.Info("migration tables initialized")
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the drinks table and seed it",
	Long:  `Applies all pending migrations while holding the migration lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(db *bun.DB, _ *migrate.Migrator) error {
			group, err := migrations.Up(cmd.Context(), db)
			if err != nil {
				return err
			}
			if group.ID == 0 {
				slog.Info("no new migrations to apply")
				return nil
			}
			slog.Info("applied migration group", "group", group.ID, "migrations", group.Migrations.String())
			return nil
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(_ *bun.DB, m *migrate.Migrator) error {
			ms, err := m.MigrationsWithStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "applied: %s\n", ms.Applied())
			fmt.Fprintf(out, "pending: %s\n", ms.Unapplied())
			fmt.Fprintf(out, "last group: %s\n", ms.LastGroup())
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last migration group",
	Long:  `Rolls back the most recent migration group. Rolling back the first group drops the drinks table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(_ *bun.DB, m *migrate.Migrator) error {
			ctx := cmd.Context()
			if err := m.Lock(ctx); err != nil {
				return fmt.Errorf("failed to acquire migration lock: %w", err)
			}
			defer func() {
				if err := m.Unlock(ctx); err != nil {
					slog.Warn("failed to release migration lock", "error", err)
				}
			}()

			group, err := m.Rollback(ctx)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if group.ID == 0 {
				slog.Info("no migrations to roll back")
				return nil
			}
			slog.Info("rolled back migration group", "group", group.ID, "migrations", group.Migrations.String())
			return nil
		})
	},
}

var dbLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Acquire the migration lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(_ *bun.DB, m *migrate.Migrator) error {
			if err := m.Lock(cmd.Context()); err != nil {
				return fmt.Errorf("failed to acquire migration lock: %w", err)
			}
			slog.Info("migration lock acquired; run 'coffeeapi db unlock' when finished")
			return nil
		})
	},
}

var dbUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force release the migration lock",
	Long:  `Releases the migration lock left behind by a crashed migrate or rollback.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(_ *bun.DB, m *migrate.Migrator) error {
			if err := m.Unlock(cmd.Context()); err != nil {
				return fmt.Errorf("failed to release migration lock: %w", err)
			}
			slog.Info("migration lock released")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd, dbMigrateCmd, dbStatusCmd, dbRollbackCmd, dbLockCmd, dbUnlockCmd)
}
