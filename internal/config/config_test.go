package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Storage.Driver != DefaultStorageDriver {
		t.Fatalf("unexpected driver: %q", cfg.Storage.Driver)
	}
	if cfg.Matchmaking.RecentOpponentTimeout != "5m" {
		t.Fatalf("unexpected recent opponent timeout: %q", cfg.Matchmaking.RecentOpponentTimeout)
	}
	if cfg.Matchmaking.ClaimAttempts != DefaultClaimAttempts {
		t.Fatalf("unexpected claim attempts: %d", cfg.Matchmaking.ClaimAttempts)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
driver = "postgres"

[postgres]
host = "db"
password = "secret"

[telegram]
bot_token = "123:abc"
mode = "webhook"
webhook_url = "https://example.com/telegram/webhook"

[matchmaking]
recent_opponent_timeout = "10m"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Postgres.Host != "db" || cfg.Postgres.Password != "secret" {
		t.Fatalf("unexpected storage config: %#v %#v", cfg.Storage, cfg.Postgres)
	}
	if cfg.Postgres.Port != DefaultPGPort {
		t.Fatalf("expected default port to survive, got %d", cfg.Postgres.Port)
	}
	if cfg.Telegram.Mode != "webhook" || cfg.Telegram.SendRate != DefaultTelegramSendRate {
		t.Fatalf("unexpected telegram config: %#v", cfg.Telegram)
	}
	if cfg.Matchmaking.RecentOpponentTimeout != "10m" || cfg.Matchmaking.ClaimAttempts != DefaultClaimAttempts {
		t.Fatalf("unexpected matchmaking config: %#v", cfg.Matchmaking)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[storage\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
