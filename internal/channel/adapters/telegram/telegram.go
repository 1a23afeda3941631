package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/memohai/anontalks/internal/channel"
)

var (
	// ErrUnauthorized is returned for webhook requests without the configured secret.
	ErrUnauthorized = errors.New("telegram webhook secret mismatch")
	// ErrNotConnected is returned for webhook requests before Connect.
	ErrNotConnected = errors.New("telegram adapter not connected")
)

var setLoggerOnce sync.Once

var pollRetryInterval = 100 * time.Millisecond

type TelegramAdapter struct {
	logger  *slog.Logger
	cfg     Config
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter

	mu      sync.RWMutex
	handler channel.InboundHandler
}

// NewTelegramAdapter validates cfg and authenticates the bot token.
func NewTelegramAdapter(log *slog.Logger, cfg Config) (*TelegramAdapter, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("adapter", "telegram"))
	parsed, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}
	setLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(newBotLogger(log))
	})

	endpoint := parsed.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(parsed.BotToken, endpoint, &http.Client{Timeout: 60 * time.Second})
	if err != nil {
		log.Error("create bot failed", slog.Any("error", err))
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = parsed.Debug

	limit := rate.Inf
	if parsed.SendRate > 0 {
		limit = rate.Limit(parsed.SendRate)
	}
	log.Info("bot authorized", slog.String("username", bot.Self.UserName), slog.String("mode", parsed.Mode))
	return &TelegramAdapter{
		logger:  log,
		cfg:     parsed,
		bot:     bot,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (a *TelegramAdapter) Type() channel.ChannelType {
	return Type
}

// Connect starts receiving updates: long polling, or registering the webhook
// so that HandleWebhook starts accepting requests.
func (a *TelegramAdapter) Connect(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	if handler == nil {
		return nil, errors.New("inbound handler is required")
	}
	a.setHandler(handler)
	if a.cfg.Mode == ModeWebhook {
		return a.connectWebhook()
	}
	return a.connectPolling(ctx, handler)
}

func (a *TelegramAdapter) connectWebhook() (channel.Connection, error) {
	link, err := webhookLink(a.cfg)
	if err != nil {
		return nil, err
	}
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return nil, fmt.Errorf("build webhook: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		a.logger.Error("set webhook failed", slog.Any("error", err))
		return nil, fmt.Errorf("set webhook: %w", err)
	}
	a.logger.Info("webhook registered")
	return channel.NewConnection(Type, func(context.Context) error {
		a.setHandler(nil)
		a.logger.Info("stop")
		return nil
	}), nil
}

func (a *TelegramAdapter) connectPolling(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	// getUpdates is refused while a webhook is set.
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		a.logger.Warn("delete webhook failed", slog.Any("error", err))
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := a.bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-connCtx.Done():
				a.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				msg, ok := toInbound(update)
				if !ok {
					continue
				}
				a.logInbound(msg)
				if err := a.dispatchPolled(connCtx, handler, msg); err != nil {
					a.logger.Error("handle inbound failed", slog.Any("error", err))
				}
			}
		}
	}()

	var once sync.Once
	stop := func(context.Context) error {
		once.Do(func() {
			a.logger.Info("stop")
			a.setHandler(nil)
			cancel()
		})
		return nil
	}
	return channel.NewConnection(Type, stop), nil
}

// dispatchPolled hands a polled update to handler. Telegram has already
// advanced past it, so a full inbound queue is waited out rather than dropped;
// holding the loop also stops the library from fetching further updates.
func (a *TelegramAdapter) dispatchPolled(ctx context.Context, handler channel.InboundHandler, msg channel.InboundMessage) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pollRetryInterval
	b.MaxInterval = 2 * time.Second
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := handler(ctx, msg)
		if errors.Is(err, channel.ErrInboundQueueFull) {
			a.logger.Warn("inbound queue full, holding polled update", slog.String("user_id", msg.Sender.ExternalID))
			return struct{}{}, err
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b))
	return err
}

// HandleWebhook processes one webhook request from Telegram.
func (a *TelegramAdapter) HandleWebhook(r *http.Request) error {
	if secret := a.cfg.WebhookSecret; secret != "" {
		got := r.URL.Query().Get(SecretParam)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return ErrUnauthorized
		}
	}
	handler := a.currentHandler()
	if handler == nil {
		return ErrNotConnected
	}
	update, err := a.bot.HandleUpdate(r)
	if err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	msg, ok := toInbound(*update)
	if !ok {
		return nil
	}
	a.logInbound(msg)
	return handler(r.Context(), msg)
}

// Send delivers msg, split into Telegram-sized pieces, respecting the send rate.
func (a *TelegramAdapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	chatID, err := parseChatID(msg.Target)
	if err != nil {
		return err
	}
	if msg.Text == "" {
		return errors.New("message is required")
	}
	for _, chunk := range channel.SplitText(msg.Text, maxMessageRunes) {
		if err := a.sendText(ctx, chatID, chunk); err != nil {
			a.logger.Error("send failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
			return err
		}
	}
	return nil
}

func (a *TelegramAdapter) sendText(ctx context.Context, chatID int64, text string) error {
	for attempt := 0; ; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := a.bot.Send(tgbotapi.NewMessage(chatID, text))
		if err == nil {
			return nil
		}
		var tgErr *tgbotapi.Error
		if attempt > 0 || !errors.As(err, &tgErr) || tgErr.RetryAfter <= 0 {
			return fmt.Errorf("telegram send: %w", err)
		}
		wait := time.Duration(tgErr.RetryAfter) * time.Second
		a.logger.Warn("rate limited by telegram", slog.Duration("retry_after", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (a *TelegramAdapter) setHandler(h channel.InboundHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

func (a *TelegramAdapter) currentHandler() channel.InboundHandler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handler
}

func (a *TelegramAdapter) logInbound(msg channel.InboundMessage) {
	a.logger.Debug("inbound received",
		slog.String("chat_id", msg.ReplyTarget),
		slog.String("user_id", msg.Sender.ExternalID),
		slog.Int("text_len", len(msg.Text)),
	)
}

// toInbound extracts a private text message. Group chats and non-text
// messages are ignored.
func toInbound(update tgbotapi.Update) (channel.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return channel.InboundMessage{}, false
	}
	if strings.TrimSpace(m.Text) == "" {
		return channel.InboundMessage{}, false
	}
	displayName := strings.TrimSpace(m.From.UserName)
	if displayName == "" {
		displayName = strings.TrimSpace(m.From.FirstName)
	}
	return channel.InboundMessage{
		Channel:     Type,
		MessageID:   strconv.Itoa(m.MessageID),
		Sender:      channel.Identity{ExternalID: strconv.FormatInt(m.From.ID, 10), DisplayName: displayName},
		ReplyTarget: strconv.FormatInt(m.Chat.ID, 10),
		Text:        m.Text,
		ReceivedAt:  time.Unix(int64(m.Date), 0).UTC(),
	}, true
}
