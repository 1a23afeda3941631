// Package inbound turns transport messages into matchmaker events and
// delivers the resulting notifications.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/memohai/anontalks/internal/analytics"
	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/logger"
	"github.com/memohai/anontalks/internal/matchmaker"
	"github.com/memohai/anontalks/internal/storage"
)

const (
	DefaultNotRegisteredText = "Send /start to begin."
	DefaultRetryTries        = 4
	defaultRetryInterval     = 100 * time.Millisecond
)

// EventHandler applies a participant event.
type EventHandler interface {
	Handle(ctx context.Context, ev matchmaker.Event) ([]matchmaker.Notification, error)
}

// Tracker records message analytics.
type Tracker interface {
	Track(msg analytics.Message)
	IncludeText() bool
}

type Options struct {
	NotRegisteredText string
	// RetryTries bounds attempts on storage.ErrUnavailable.
	RetryTries    uint
	RetryInterval time.Duration
}

// Processor implements channel.InboundProcessor on top of the matchmaker.
type Processor struct {
	events  EventHandler
	tracker Tracker
	opts    Options
	logger  *slog.Logger
}

// NewProcessor creates a processor. tracker may be nil.
func NewProcessor(log *slog.Logger, events EventHandler, tracker Tracker, opts Options) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if opts.NotRegisteredText == "" {
		opts.NotRegisteredText = DefaultNotRegisteredText
	}
	if opts.RetryTries == 0 {
		opts.RetryTries = DefaultRetryTries
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	return &Processor{
		events:  events,
		tracker: tracker,
		opts:    opts,
		logger:  log.With(slog.String("component", "inbound")),
	}
}

// HandleInbound processes one inbound message and replies through sender.
func (p *Processor) HandleInbound(ctx context.Context, msg channel.InboundMessage, sender channel.Sender) error {
	if sender == nil {
		return errors.New("reply sender not configured")
	}
	if !msg.Valid() {
		p.logger.Debug("inbound dropped: missing sender or reply target", slog.String("channel", msg.Channel.String()))
		return nil
	}
	ctx, log := logger.WithTrace(ctx, p.logger)
	ev := ParseEvent(msg)
	log = log.With(slog.String("external_id", ev.ExternalID), slog.String("event", string(ev.Kind)))
	p.track(analytics.KindIncoming, ev.Address, ev.ExternalID, p.analyticsText(ev))

	notes, err := p.handle(ctx, ev)
	if errors.Is(err, matchmaker.ErrNotRegistered) {
		log.Debug("event from unregistered participant")
		notes, err = []matchmaker.Notification{{Address: ev.Address, Text: p.opts.NotRegisteredText}}, nil
	}
	if err != nil {
		log.Error("handle event failed", slog.Any("error", err))
		return fmt.Errorf("handle %s event: %w", ev.Kind, err)
	}

	var errs []error
	for _, n := range notes {
		if err := sender.Send(ctx, channel.OutboundMessage{Target: n.Address, Text: n.Text}); err != nil {
			log.Warn("deliver notification failed", slog.String("target", n.Address), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		p.track(analytics.KindOutgoing, n.Address, "", p.outgoingText(ev, n))
	}
	log.Debug("event handled", slog.Int("notifications", len(notes)))
	return errors.Join(errs...)
}

// handle retries the matchmaker while the store reports itself unavailable.
// Each ledger operation is one transaction, so a failed attempt left nothing behind.
func (p *Processor) handle(ctx context.Context, ev matchmaker.Event) ([]matchmaker.Notification, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.RetryInterval
	return backoff.Retry(ctx, func() ([]matchmaker.Notification, error) {
		notes, err := p.events.Handle(ctx, ev)
		if err != nil && !errors.Is(err, storage.ErrUnavailable) {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			logger.FromContext(ctx).Warn("store unavailable, retrying", slog.Any("error", err))
		}
		return notes, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.opts.RetryTries))
}

func (p *Processor) track(kind analytics.Kind, conversationID, senderID, text string) {
	if p.tracker == nil {
		return
	}
	p.tracker.Track(analytics.Message{Text: text, Kind: kind, ConversationID: conversationID, SenderID: senderID})
}

func (p *Processor) analyticsText(ev matchmaker.Event) string {
	if ev.Kind == matchmaker.EventMessage && p.tracker != nil && p.tracker.IncludeText() {
		return ev.Text
	}
	return string(ev.Kind)
}

func (p *Processor) outgoingText(ev matchmaker.Event, n matchmaker.Notification) string {
	if ev.Kind != matchmaker.EventMessage || (p.tracker != nil && p.tracker.IncludeText()) {
		return n.Text
	}
	return "relay"
}
