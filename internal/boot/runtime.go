// Package boot provides runtime configuration and dependency wiring for the bot.
package boot

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/memohai/anontalks/internal/config"
	"github.com/memohai/anontalks/internal/db"
)

// WebhookPath is the HTTP route that receives Telegram webhook updates.
const WebhookPath = "/telegram/webhook"

var validate = validator.New()

// RuntimeConfig holds parsed runtime settings.
// Values may be overridden by environment variables (see envOverrides).
type RuntimeConfig struct {
	ServerAddr string `validate:"required"`

	StorageDriver string `validate:"oneof=postgres sqlite"`
	SQLitePath    string `validate:"required_if=StorageDriver sqlite"`
	DatabaseURL   string `validate:"required"`
	AutoMigrate   bool
	MaxConns      int32

	BotToken      string `validate:"required"`
	TelegramMode  string `validate:"oneof=polling webhook"`
	WebhookURL    string `validate:"required_if=TelegramMode webhook"`
	WebhookSecret string
	SendRate      float64 `validate:"gt=0"`
	TelegramDebug bool

	RecentOpponentTimeout time.Duration `validate:"gt=0"`
	ClaimAttempts         int           `validate:"min=1"`
	WaitingTimeout        time.Duration
	ExpirySchedule        string

	BotlyticsAPIKey      string
	BotlyticsURL         string
	BotlyticsIncludeText bool
}

// envOverrides mirrors the variables the bot has always honoured.
type envOverrides struct {
	BotToken        string `env:"BOT_API_TOKEN"`
	DatabaseURL     string `env:"DATABASE_URL"`
	HTTPAddr        string `env:"HTTP_ADDR"`
	WebhookHost     string `env:"BOT_WEBHOOK_HOST"`
	BotlyticsAPIKey string `env:"BOTLYTICS_API_KEY"`
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config, applies env overrides and validates it.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	recentTimeout, err := parseDuration("matchmaking.recent_opponent_timeout", cfg.Matchmaking.RecentOpponentTimeout)
	if err != nil {
		return nil, err
	}
	waitingTimeout, err := parseDuration("matchmaking.waiting_timeout", cfg.Matchmaking.WaitingTimeout)
	if err != nil {
		return nil, err
	}

	ret := &RuntimeConfig{
		ServerAddr:            cfg.Server.Addr,
		StorageDriver:         strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		SQLitePath:            strings.TrimSpace(cfg.Storage.SQLitePath),
		AutoMigrate:           cfg.Storage.AutoMigrate,
		MaxConns:              cfg.Postgres.MaxConns,
		BotToken:              strings.TrimSpace(cfg.Telegram.BotToken),
		TelegramMode:          strings.ToLower(strings.TrimSpace(cfg.Telegram.Mode)),
		WebhookURL:            strings.TrimSpace(cfg.Telegram.WebhookURL),
		WebhookSecret:         strings.TrimSpace(cfg.Telegram.WebhookSecret),
		SendRate:              cfg.Telegram.SendRate,
		TelegramDebug:         cfg.Telegram.Debug,
		RecentOpponentTimeout: recentTimeout,
		ClaimAttempts:         cfg.Matchmaking.ClaimAttempts,
		WaitingTimeout:        waitingTimeout,
		ExpirySchedule:        strings.TrimSpace(cfg.Matchmaking.ExpirySchedule),
		BotlyticsAPIKey:       strings.TrimSpace(cfg.Analytics.BotlyticsAPIKey),
		BotlyticsURL:          strings.TrimSpace(cfg.Analytics.BotlyticsURL),
		BotlyticsIncludeText:  cfg.Analytics.IncludeText,
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if overrides.BotToken != "" {
		ret.BotToken = overrides.BotToken
	}
	if overrides.HTTPAddr != "" {
		ret.ServerAddr = overrides.HTTPAddr
	}
	if overrides.WebhookHost != "" {
		ret.TelegramMode = "webhook"
		ret.WebhookURL = strings.TrimRight(overrides.WebhookHost, "/") + WebhookPath
	}
	if overrides.BotlyticsAPIKey != "" {
		ret.BotlyticsAPIKey = overrides.BotlyticsAPIKey
	}

	ret.DatabaseURL = databaseURL(cfg, ret.StorageDriver, overrides.DatabaseURL)

	if err := validate.Struct(ret); err != nil {
		return nil, fmt.Errorf("invalid runtime config: %w", err)
	}
	return ret, nil
}

// StorageTarget resolves the storage driver and its database URL, env overrides
// included, without requiring the rest of the runtime config. Used by migrate.
func StorageTarget(cfg config.Config) (driver, url string, err error) {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return "", "", fmt.Errorf("parse env: %w", err)
	}
	driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	url = databaseURL(cfg, driver, overrides.DatabaseURL)
	if url == "" {
		return "", "", fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
	return driver, url, nil
}

func databaseURL(cfg config.Config, driver, override string) string {
	switch driver {
	case "postgres":
		if override != "" {
			return override
		}
		return db.DSN(cfg.Postgres)
	case "sqlite":
		if path := strings.TrimSpace(cfg.Storage.SQLitePath); path != "" {
			return db.SQLiteURL(path)
		}
	}
	return ""
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
