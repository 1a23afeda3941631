package matchmaker

import (
	"context"
	"errors"
	"time"

	"github.com/memohai/anontalks/internal/ledger"
	"github.com/memohai/anontalks/internal/participants"
)

// ErrNotRegistered is returned for any event other than register from an
// unknown participant.
var ErrNotRegistered = errors.New("participant is not registered")

// EventKind is what an inbound event asks the matchmaker to do.
type EventKind string

const (
	EventRegister       EventKind = "register"
	EventRequestPairing EventKind = "request_pairing"
	EventCancel         EventKind = "cancel"
	EventEnd            EventKind = "end"
	EventMessage        EventKind = "message"
)

// Event is one inbound action of a participant.
type Event struct {
	ExternalID string
	Address    string
	Kind       EventKind
	Text       string
}

// Notification is a text to deliver to an address.
type Notification struct {
	Address string
	Text    string
}

// Texts are the replies sent to participants.
type Texts struct {
	Welcome           string
	AlreadyRegistered string
	Searching         string
	Paired            string
	Cancelled         string
	Ended             string
	Expired           string
}

// DefaultTexts returns the stock replies.
func DefaultTexts() Texts {
	return Texts{
		Welcome:           "Welcome to the anonymous chat!\nHere you can talk to other people without revealing who you are. Send /search to find someone.",
		AlreadyRegistered: "You are already registered.",
		Searching:         "Looking for someone to talk to... Send /cancel to stop searching.",
		Paired:            "You are connected! Say hi. Send /end to leave the conversation.",
		Cancelled:         "Search cancelled.",
		Ended:             "The conversation has ended. Send /search to find someone new.",
		Expired:           "Nobody was found in time, search stopped. Send /search to try again.",
	}
}

// ParticipantDirectory is the participant store used by the matchmaker.
type ParticipantDirectory interface {
	GetOrCreate(ctx context.Context, externalID, address string) (participants.Participant, bool, error)
	Get(ctx context.Context, externalID string) (participants.Participant, error)
	GetByID(ctx context.Context, id int64) (participants.Participant, error)
}

// PairingLedger is the conversation ledger used by the matchmaker.
type PairingLedger interface {
	ClaimOrOpen(ctx context.Context, requesterID int64) (ledger.Conversation, error)
	Finish(ctx context.Context, conversationID int64) (ledger.Conversation, bool, error)
	CancelWaiting(ctx context.Context, participantID int64) (ledger.Conversation, error)
	CancelStale(ctx context.Context, conv ledger.Conversation) (ledger.Conversation, error)
	ActiveConversationOf(ctx context.Context, participantID int64) (ledger.Conversation, error)
	StaleWaiting(ctx context.Context, olderThan time.Duration, limit int) ([]ledger.Conversation, error)
}

// CounterpartResolver finds the recipient of a message.
type CounterpartResolver interface {
	ResolveCounterpart(ctx context.Context, conv ledger.Conversation, senderID int64) (participants.Participant, error)
}
