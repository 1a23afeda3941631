package boot

import (
	"strings"
	"testing"
	"time"

	"github.com/memohai/anontalks/internal/config"
)

func validConfig() config.Config {
	cfg := config.Default()
	cfg.Telegram.BotToken = "123:abc"
	return cfg
}

func TestProvideRuntimeConfigDefaults(t *testing.T) {
	rc, err := ProvideRuntimeConfig(validConfig())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rc.RecentOpponentTimeout != 5*time.Minute {
		t.Fatalf("unexpected recent opponent timeout: %v", rc.RecentOpponentTimeout)
	}
	if rc.WaitingTimeout != 0 {
		t.Fatalf("waiting expiry should be disabled by default, got %v", rc.WaitingTimeout)
	}
	if rc.DatabaseURL != "sqlite://data/anontalks.db" {
		t.Fatalf("unexpected database url: %q", rc.DatabaseURL)
	}
	if rc.TelegramMode != "polling" {
		t.Fatalf("unexpected telegram mode: %q", rc.TelegramMode)
	}
}

func TestProvideRuntimeConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_API_TOKEN", "env-token")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/anon?sslmode=disable")
	t.Setenv("BOT_WEBHOOK_HOST", "https://bot.example.com/")
	t.Setenv("HTTP_ADDR", ":9000")

	cfg := validConfig()
	cfg.Storage.Driver = "postgres"
	rc, err := ProvideRuntimeConfig(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rc.BotToken != "env-token" {
		t.Fatalf("unexpected bot token: %q", rc.BotToken)
	}
	if rc.DatabaseURL != "postgres://u:p@db:5432/anon?sslmode=disable" {
		t.Fatalf("unexpected database url: %q", rc.DatabaseURL)
	}
	if rc.TelegramMode != "webhook" || rc.WebhookURL != "https://bot.example.com"+WebhookPath {
		t.Fatalf("unexpected webhook config: %q %q", rc.TelegramMode, rc.WebhookURL)
	}
	if rc.ServerAddr != ":9000" {
		t.Fatalf("unexpected server addr: %q", rc.ServerAddr)
	}
}

func TestProvideRuntimeConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing token", func(c *config.Config) { c.Telegram.BotToken = "" }, "BotToken"},
		{"unknown driver", func(c *config.Config) { c.Storage.Driver = "mysql" }, "StorageDriver"},
		{"webhook without url", func(c *config.Config) { c.Telegram.Mode = "webhook" }, "WebhookURL"},
		{"zero claim attempts", func(c *config.Config) { c.Matchmaking.ClaimAttempts = 0 }, "ClaimAttempts"},
		{"zero recent opponent timeout", func(c *config.Config) { c.Matchmaking.RecentOpponentTimeout = "0s" }, "RecentOpponentTimeout"},
		{"empty recent opponent timeout", func(c *config.Config) { c.Matchmaking.RecentOpponentTimeout = "" }, "RecentOpponentTimeout"},
		{"bad duration", func(c *config.Config) { c.Matchmaking.RecentOpponentTimeout = "five" }, "recent_opponent_timeout"},
		{"negative duration", func(c *config.Config) { c.Matchmaking.WaitingTimeout = "-1m" }, "waiting_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			_, err := ProvideRuntimeConfig(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestStorageTarget(t *testing.T) {
	cfg := config.Default()
	driver, url, err := StorageTarget(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if driver != "sqlite" || url != "sqlite://data/anontalks.db" {
		t.Fatalf("unexpected target: %s %s", driver, url)
	}

	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/anon")
	cfg.Storage.Driver = "Postgres"
	driver, url, err = StorageTarget(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if driver != "postgres" || url != "postgres://u:p@db:5432/anon" {
		t.Fatalf("unexpected target: %s %s", driver, url)
	}

	cfg.Storage.Driver = "mysql"
	if _, _, err := StorageTarget(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
