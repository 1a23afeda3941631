// Package router resolves who receives a message sent inside a conversation.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/memohai/anontalks/internal/ledger"
	"github.com/memohai/anontalks/internal/participants"
)

// ErrInvalidParticipant means the sender is not a side of the conversation,
// or the conversation has no opponent yet. It indicates corrupted state.
var ErrInvalidParticipant = errors.New("sender is not a participant of the conversation")

// ParticipantLookup loads participants by internal id.
type ParticipantLookup interface {
	GetByID(ctx context.Context, id int64) (participants.Participant, error)
}

// Router maps a sender to its counterpart.
type Router struct {
	people ParticipantLookup
	logger *slog.Logger
}

// New creates a router.
func New(log *slog.Logger, people ParticipantLookup) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		people: people,
		logger: log.With(slog.String("service", "router")),
	}
}

// ResolveCounterpart returns the other side of conv for senderID.
func (r *Router) ResolveCounterpart(ctx context.Context, conv ledger.Conversation, senderID int64) (participants.Participant, error) {
	var counterpartID int64
	switch {
	case !conv.Matched():
	case senderID == conv.InitiatorID:
		counterpartID = conv.OpponentID
	case senderID == conv.OpponentID:
		counterpartID = conv.InitiatorID
	}
	if counterpartID == 0 {
		r.logger.Error("counterpart resolution failed",
			slog.Int64("conversation_id", conv.ID),
			slog.Int64("sender_id", senderID),
		)
		return participants.Participant{}, fmt.Errorf("conversation %d, sender %d: %w", conv.ID, senderID, ErrInvalidParticipant)
	}

	p, err := r.people.GetByID(ctx, counterpartID)
	if err != nil {
		return participants.Participant{}, fmt.Errorf("load counterpart: %w", err)
	}
	return p, nil
}
