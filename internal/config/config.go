// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath            = "config.toml"
	DefaultHTTPAddr              = ":3001"
	DefaultStorageDriver         = "sqlite"
	DefaultSQLitePath            = "data/anontalks.db"
	DefaultPGHost                = "127.0.0.1"
	DefaultPGPort                = 5432
	DefaultPGUser                = "postgres"
	DefaultPGDatabase            = "anontalks"
	DefaultPGSSLMode             = "disable"
	DefaultTelegramMode          = "polling"
	DefaultTelegramSendRate      = 25.0
	DefaultRecentOpponentTimeout = "5m"
	DefaultClaimAttempts         = 3
	DefaultWaitingTimeout        = "0s"
	DefaultExpirySchedule        = "@every 1m"
	DefaultBotlyticsURL          = "http://botlytics.co/api/v1/"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Matchmaking MatchmakingConfig `toml:"matchmaking"`
	Analytics   AnalyticsConfig   `toml:"analytics"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StorageConfig selects the pairing store backend.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	AutoMigrate bool   `toml:"auto_migrate"`
}

// PostgresConfig holds PostgreSQL connection parameters. URL, when set, overrides the discrete fields.
type PostgresConfig struct {
	URL      string `toml:"url"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
	MaxConns int32  `toml:"max_conns"`
}

// TelegramConfig holds the bot token and update delivery mode (polling or webhook).
type TelegramConfig struct {
	BotToken      string  `toml:"bot_token"`
	Mode          string  `toml:"mode"`
	WebhookURL    string  `toml:"webhook_url"`
	WebhookSecret string  `toml:"webhook_secret"`
	SendRate      float64 `toml:"send_rate"`
	Debug         bool    `toml:"debug"`
}

// MatchmakingConfig holds pairing rules. Durations use time.ParseDuration syntax.
type MatchmakingConfig struct {
	RecentOpponentTimeout string `toml:"recent_opponent_timeout"`
	ClaimAttempts         int    `toml:"claim_attempts"`
	WaitingTimeout        string `toml:"waiting_timeout"`
	ExpirySchedule        string `toml:"expiry_schedule"`
}

// AnalyticsConfig holds the Botlytics API key; an empty key disables tracking.
type AnalyticsConfig struct {
	BotlyticsAPIKey string `toml:"botlytics_api_key"`
	BotlyticsURL    string `toml:"botlytics_url"`
	// IncludeText forwards message bodies instead of event names.
	IncludeText bool `toml:"include_text"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Storage: StorageConfig{
			Driver:      DefaultStorageDriver,
			SQLitePath:  DefaultSQLitePath,
			AutoMigrate: true,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Telegram: TelegramConfig{
			Mode:     DefaultTelegramMode,
			SendRate: DefaultTelegramSendRate,
		},
		Matchmaking: MatchmakingConfig{
			RecentOpponentTimeout: DefaultRecentOpponentTimeout,
			ClaimAttempts:         DefaultClaimAttempts,
			WaitingTimeout:        DefaultWaitingTimeout,
			ExpirySchedule:        DefaultExpirySchedule,
		},
		Analytics: AnalyticsConfig{
			BotlyticsURL: DefaultBotlyticsURL,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
