package db

import (
	"testing"

	"github.com/memohai/anontalks/internal/config"
)

func TestRunMigrateUnknownCommand(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "anontalks",
		Password: "secret",
		Database: "anontalks",
		SSLMode:  "disable",
	}
	err := RunMigrate(nil, DSN(cfg), nil, "invalid", nil)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRunMigrateForceRequiresVersion(t *testing.T) {
	err := RunMigrate(nil, SQLiteURL("unused.db"), nil, "force", nil)
	if err == nil {
		t.Fatal("expected error when force has no version")
	}
}
