// Package matchmaker runs the participant state machine: menu, waiting, in conversation.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memohai/anontalks/internal/ledger"
	"github.com/memohai/anontalks/internal/participants"
)

const expireBatch = 100

// Matchmaker turns participant events into ledger operations and replies.
type Matchmaker struct {
	people ParticipantDirectory
	ledger PairingLedger
	router CounterpartResolver
	texts  Texts
	logger *slog.Logger
}

// New creates a matchmaker with the default texts.
func New(log *slog.Logger, people ParticipantDirectory, pairing PairingLedger, router CounterpartResolver) *Matchmaker {
	if log == nil {
		log = slog.Default()
	}
	return &Matchmaker{
		people: people,
		ledger: pairing,
		router: router,
		texts:  DefaultTexts(),
		logger: log.With(slog.String("service", "matchmaker")),
	}
}

// SetTexts replaces the reply texts.
func (m *Matchmaker) SetTexts(t Texts) {
	m.texts = t
}

// Handle applies ev and returns the notifications to deliver, possibly none.
func (m *Matchmaker) Handle(ctx context.Context, ev Event) ([]Notification, error) {
	if ev.Kind == EventRegister {
		return m.register(ctx, ev)
	}

	p, err := m.load(ctx, ev.ExternalID)
	if err != nil {
		return nil, err
	}
	out, err := m.dispatch(ctx, p, ev)
	if !lostRace(err) {
		return out, err
	}

	// Another event moved this participant first; retry once on fresh state.
	m.logger.Debug("state changed during event, re-dispatching",
		slog.Int64("participant_id", p.ID),
		slog.String("status", string(p.Status)),
		slog.String("event", string(ev.Kind)),
	)
	p, err = m.load(ctx, ev.ExternalID)
	if err != nil {
		return nil, err
	}
	return m.dispatch(ctx, p, ev)
}

func (m *Matchmaker) load(ctx context.Context, externalID string) (participants.Participant, error) {
	p, err := m.people.Get(ctx, externalID)
	if errors.Is(err, participants.ErrNotFound) {
		return participants.Participant{}, ErrNotRegistered
	}
	return p, err
}

func lostRace(err error) bool {
	if errors.Is(err, ledger.ErrInconsistentState) {
		return false
	}
	return errors.Is(err, participants.ErrStatusChanged) || errors.Is(err, ledger.ErrNotFound)
}

func (m *Matchmaker) dispatch(ctx context.Context, p participants.Participant, ev Event) ([]Notification, error) {
	switch p.Status {
	case participants.StatusInMenu:
		if ev.Kind == EventRequestPairing {
			return m.requestPairing(ctx, p)
		}
	case participants.StatusWaiting:
		if ev.Kind == EventCancel {
			return m.cancelWaiting(ctx, p)
		}
	case participants.StatusInConversation:
		switch ev.Kind {
		case EventEnd:
			return m.endConversation(ctx, p)
		case EventMessage:
			return m.forward(ctx, p, ev.Text)
		}
	default:
		return nil, fmt.Errorf("participant %d has unknown status %q", p.ID, p.Status)
	}
	return nil, nil
}

func (m *Matchmaker) register(ctx context.Context, ev Event) ([]Notification, error) {
	p, created, err := m.people.GetOrCreate(ctx, ev.ExternalID, ev.Address)
	if err != nil {
		return nil, err
	}
	text := m.texts.AlreadyRegistered
	if created {
		text = m.texts.Welcome
	}
	return []Notification{{Address: p.Address, Text: text}}, nil
}

func (m *Matchmaker) requestPairing(ctx context.Context, p participants.Participant) ([]Notification, error) {
	conv, err := m.ledger.ClaimOrOpen(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !conv.Matched() {
		return []Notification{{Address: p.Address, Text: m.texts.Searching}}, nil
	}
	initiator, err := m.people.GetByID(ctx, conv.InitiatorID)
	if err != nil {
		return nil, fmt.Errorf("load initiator: %w", err)
	}
	return []Notification{
		{Address: initiator.Address, Text: m.texts.Paired},
		{Address: p.Address, Text: m.texts.Paired},
	}, nil
}

func (m *Matchmaker) cancelWaiting(ctx context.Context, p participants.Participant) ([]Notification, error) {
	if _, err := m.ledger.CancelWaiting(ctx, p.ID); err != nil {
		return nil, err
	}
	return []Notification{{Address: p.Address, Text: m.texts.Cancelled}}, nil
}

func (m *Matchmaker) endConversation(ctx context.Context, p participants.Participant) ([]Notification, error) {
	conv, err := m.ledger.ActiveConversationOf(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	counterpart, err := m.router.ResolveCounterpart(ctx, conv, p.ID)
	if err != nil {
		return nil, err
	}
	_, finishedNow, err := m.ledger.Finish(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if !finishedNow {
		// The other side ended it concurrently and was notified there.
		return nil, nil
	}
	return []Notification{
		{Address: p.Address, Text: m.texts.Ended},
		{Address: counterpart.Address, Text: m.texts.Ended},
	}, nil
}

func (m *Matchmaker) forward(ctx context.Context, p participants.Participant, text string) ([]Notification, error) {
	if text == "" {
		return nil, nil
	}
	conv, err := m.ledger.ActiveConversationOf(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	counterpart, err := m.router.ResolveCounterpart(ctx, conv, p.ID)
	if err != nil {
		return nil, err
	}
	return []Notification{{Address: counterpart.Address, Text: text}}, nil
}

// ExpireWaiting cancels waiting conversations opened more than olderThan ago
// and tells their initiators. Slots claimed in the meantime are skipped.
func (m *Matchmaker) ExpireWaiting(ctx context.Context, olderThan time.Duration) ([]Notification, error) {
	if olderThan <= 0 {
		return nil, nil
	}
	stale, err := m.ledger.StaleWaiting(ctx, olderThan, expireBatch)
	if err != nil {
		return nil, err
	}
	var out []Notification
	for _, conv := range stale {
		if _, err := m.ledger.CancelStale(ctx, conv); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				continue
			}
			return out, fmt.Errorf("expire conversation %d: %w", conv.ID, err)
		}
		initiator, err := m.people.GetByID(ctx, conv.InitiatorID)
		if err != nil {
			return out, fmt.Errorf("load initiator of conversation %d: %w", conv.ID, err)
		}
		out = append(out, Notification{Address: initiator.Address, Text: m.texts.Expired})
	}
	if len(out) > 0 {
		m.logger.Info("expired waiting conversations", slog.Int("count", len(out)))
	}
	return out, nil
}
