package participants

import (
	"errors"
	"time"
)

// Status is the conversational state of a participant.
type Status string

const (
	StatusInMenu         Status = "in_menu"
	StatusWaiting        Status = "waiting"
	StatusInConversation Status = "in_conversation"
)

var (
	ErrNotFound = errors.New("participant not found")
	// ErrStatusChanged is returned by SetStatus when the participant was no
	// longer in the expected status.
	ErrStatusChanged = errors.New("participant status changed concurrently")
)

// Participant is an anonymous chat user.
type Participant struct {
	ID         int64
	ExternalID string
	Address    string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
