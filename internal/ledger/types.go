package ledger

import (
	"errors"
	"time"

	"github.com/memohai/anontalks/internal/storage"
)

var (
	ErrNotFound = errors.New("conversation not found")
	// ErrClaimConflict means another requester claimed the candidate first.
	// ClaimOrOpen recovers from it; it only escapes through claimOnce.
	ErrClaimConflict = errors.New("waiting conversation already claimed")
	// ErrInconsistentState means a participant status disagreed with the
	// conversation rows. The transaction is rolled back.
	ErrInconsistentState = errors.New("participant status inconsistent with conversation")
)

const (
	DefaultRecentOpponentTimeout = 5 * time.Minute
	DefaultClaimAttempts         = 3
)

// Conversation is a pairing between an initiator and, once claimed, an opponent.
type Conversation struct {
	ID          int64
	InitiatorID int64
	// OpponentID is zero while the conversation is waiting.
	OpponentID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// FinishedAt is zero while the conversation is open.
	FinishedAt time.Time
}

// Matched reports whether an opponent has joined.
func (c Conversation) Matched() bool { return c.OpponentID != 0 }

// Open reports whether the conversation has not been finished.
func (c Conversation) Open() bool { return c.FinishedAt.IsZero() }

// Waiting reports whether the conversation is open and has no opponent.
func (c Conversation) Waiting() bool { return c.Open() && !c.Matched() }

// Active reports whether the conversation is open and matched.
func (c Conversation) Active() bool { return c.Open() && c.Matched() }

// Has reports whether participantID is one of the two sides.
func (c Conversation) Has(participantID int64) bool {
	return participantID != 0 && (c.InitiatorID == participantID || c.OpponentID == participantID)
}

// Stats counts open conversations.
type Stats struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
}

// Options tunes the ledger. Zero values fall back to the defaults.
type Options struct {
	RecentOpponentTimeout time.Duration
	ClaimAttempts         int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

func toConversation(rec storage.ConversationRecord) Conversation {
	return Conversation{
		ID:          rec.ID,
		InitiatorID: rec.InitiatorID,
		OpponentID:  rec.OpponentID,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		FinishedAt:  rec.FinishedAt,
	}
}
