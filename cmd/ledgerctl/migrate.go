package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ledgerbot/internal/log"
	"ledgerbot/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		Long:  `Apply pending schema migrations to the SQLite ledger database and print the resulting version.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = a.cfg.SQLiteDBPath
			}
			a.logger.InfoContext(cmd.Context(), "Running migrations", log.FieldOperation, log.OpMigrate, "db_path", dbPath)
			if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
				return fmt.Errorf("create db directory: %w", err)
			}
			if err := storage.RunMigrations(dbPath); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(dbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default SQLITE_DB_PATH)")
	return cmd
}
