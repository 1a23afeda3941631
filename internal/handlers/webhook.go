package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/channel/adapters/telegram"
)

// WebhookReceiver consumes one webhook request from the transport.
type WebhookReceiver interface {
	HandleWebhook(r *http.Request) error
}

type WebhookHandler struct {
	path     string
	receiver WebhookReceiver
	logger   *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, path string, receiver WebhookReceiver) *WebhookHandler {
	return &WebhookHandler{path: path, receiver: receiver, logger: log.With(slog.String("handler", "webhook"))}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST(h.path, h.Handle)
}

// Handle godoc
// @Summary Telegram webhook
// @Description Receives bot updates pushed by Telegram
// @Tags webhook
// @Success 200
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /telegram/webhook [post]
func (h *WebhookHandler) Handle(c echo.Context) error {
	err := h.receiver.HandleWebhook(c.Request())
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case errors.Is(err, telegram.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
	case errors.Is(err, telegram.ErrNotConnected), errors.Is(err, channel.ErrInboundQueueFull), errors.Is(err, channel.ErrInboundStopped):
		// Telegram redelivers on non-2xx.
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Warn("webhook rejected", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}
}
