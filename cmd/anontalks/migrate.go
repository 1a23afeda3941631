package main

import (
	"io/fs"

	"github.com/spf13/cobra"

	dbfs "github.com/memohai/anontalks/db"
	"github.com/memohai/anontalks/internal/boot"
	"github.com/memohai/anontalks/internal/db"
	"github.com/memohai/anontalks/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate up|down|version|force N",
	Short: "Apply or inspect database migrations",
	Long: `Apply or inspect the migrations of the configured storage driver.

  up        apply all pending migrations
  down      roll back all migrations
  version   print the current version
  force N   set the version without running migrations (recovers a dirty state)`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"up", "down", "version", "force"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	driver, url, err := boot.StorageTarget(cfg)
	if err != nil {
		return err
	}
	var migrations fs.FS
	switch driver {
	case "sqlite":
		migrations = dbfs.SQLiteMigrations()
	default:
		migrations = dbfs.PostgresMigrations()
	}
	return db.RunMigrate(logger.L, url, migrations, args[0], args[1:])
}
