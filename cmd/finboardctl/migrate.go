package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finboard/internal/storage"
)

func migrateCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
		Long: `Apply, roll back or inspect the embedded schema migrations of the
SQLite backend. The server applies pending migrations on start; this
command is for upgrades and rollbacks done by hand.`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: SQLITE_DB_PATH)")

	path := func() string {
		if dbPath != "" {
			return dbPath
		}
		return a.cfg.SQLiteDBPath
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := storage.RunMigrations(path()); err != nil {
				return err
			}
			return printVersion(cmd, path())
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the latest migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			if err := storage.RollbackMigrations(path(), steps); err != nil {
				return err
			}
			return printVersion(cmd, path())
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd, path())
		},
	})
	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (%s)\n", dbPath, version, state)
	return nil
}
