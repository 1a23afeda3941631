package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	// SecretParam is the query parameter carrying the webhook secret.
	SecretParam = "secret"

	// Telegram rejects longer messages.
	maxMessageRunes = 4096
)

// Config holds the Telegram bot settings.
type Config struct {
	BotToken      string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	// SendRate caps outgoing messages per second; <= 0 disables the limit.
	SendRate float64
	Debug    bool
	// APIEndpoint overrides tgbotapi.APIEndpoint, e.g. for tests.
	APIEndpoint string
}

func parseConfig(cfg Config) (Config, error) {
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	if cfg.BotToken == "" {
		return Config{}, errors.New("telegram bot token is required")
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = ModePolling
	}
	switch cfg.Mode {
	case ModePolling:
	case ModeWebhook:
		if _, err := webhookLink(cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unsupported telegram mode: %s", cfg.Mode)
	}
	return cfg, nil
}

// webhookLink returns the URL registered with Telegram, secret included.
func webhookLink(cfg Config) (string, error) {
	raw := strings.TrimSpace(cfg.WebhookURL)
	if raw == "" {
		return "", errors.New("telegram webhook url is required in webhook mode")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid telegram webhook url: %q", raw)
	}
	if secret := strings.TrimSpace(cfg.WebhookSecret); secret != "" {
		q := u.Query()
		q.Set(SecretParam, secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// parseChatID accepts a numeric chat id, optionally prefixed with "tg:" or "telegram:".
func parseChatID(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "tg:")
	value = strings.TrimPrefix(value, "telegram:")
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid telegram chat id: %q", raw)
	}
	return id, nil
}
