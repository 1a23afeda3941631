// Package analytics forwards message events to Botlytics.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultURL = "http://botlytics.co/api/v1/"

	defaultTimeout = 10 * time.Second
)

type Kind string

const (
	KindIncoming Kind = "incoming"
	KindOutgoing Kind = "outgoing"
)

// Message is one tracked message. Empty identifiers are sent as null.
type Message struct {
	Text           string `json:"text"`
	Kind           Kind   `json:"kind"`
	ConversationID string `json:"conversation_identifier,omitempty"`
	SenderID       string `json:"sender_identifier,omitempty"`
}

type Config struct {
	APIKey string
	URL    string
	// IncludeText forwards message bodies; otherwise only the event name is sent.
	IncludeText bool
}

// Client posts messages to the Botlytics API. A Client without an API key
// drops everything, as does a nil *Client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(log *slog.Logger, cfg Config) *Client {
	if log == nil {
		log = slog.Default()
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if !strings.HasSuffix(cfg.URL, "/") {
		cfg.URL += "/"
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: log.With(slog.String("service", "analytics")),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

// IncludeText reports whether message bodies may be forwarded.
func (c *Client) IncludeText() bool {
	return c != nil && c.cfg.IncludeText
}

// Track sends msg in the background. Failures are logged and dropped.
func (c *Client) Track(msg Message) {
	if !c.Enabled() {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		if err := c.Send(ctx, msg); err != nil {
			c.logger.Warn("track message failed", slog.String("kind", string(msg.Kind)), slog.Any("error", err))
		}
	}()
}

// Send posts msg and waits for the response.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return nil
	}
	if msg.Kind != KindIncoming && msg.Kind != KindOutgoing {
		return fmt.Errorf("invalid kind %q, must be %q or %q", msg.Kind, KindIncoming, KindOutgoing)
	}
	body, err := json.Marshal(struct {
		Message Message `json:"message"`
	}{Message: msg})
	if err != nil {
		return err
	}
	endpoint := c.cfg.URL + "messages?" + url.Values{"token": {c.cfg.APIKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("botlytics: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close waits for background sends, bounded by ctx.
func (c *Client) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("analytics: pending sends dropped"), ctx.Err())
	}
}
