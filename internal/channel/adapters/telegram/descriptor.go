// Package telegram implements the Telegram channel adapter.
package telegram

import "github.com/memohai/anontalks/internal/channel"

// Type is the ChannelType identifier for Telegram.
const Type channel.ChannelType = "telegram"
