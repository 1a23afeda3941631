// Package storage defines the persistence contract shared by the pairing store backends.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup or a guarded update matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("storage: conflict")
	// ErrUnavailable wraps transient backend failures (connection loss, timeouts,
	// serialization failures). Callers at the transport boundary may retry.
	ErrUnavailable = errors.New("storage: unavailable")
)

// ParticipantRecord is a row of the participants table.
type ParticipantRecord struct {
	ID         int64
	ExternalID string
	Address    string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ConversationRecord is a row of the conversations table.
// OpponentID is zero while the conversation is waiting; FinishedAt is zero while it is open.
type ConversationRecord struct {
	ID          int64
	InitiatorID int64
	OpponentID  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinishedAt  time.Time
}

type CreateParticipantParams struct {
	ExternalID string
	Address    string
	Status     string
	At         time.Time
}

// SetParticipantStatusParams describes a conditional status transition From -> To.
type SetParticipantStatusParams struct {
	ID   int64
	From string
	To   string
	At   time.Time
}

// FindClaimCandidateParams selects a waiting conversation the requester may join.
// Conversations whose initiator finished a conversation with the requester after
// Cutoff are excluded.
type FindClaimCandidateParams struct {
	RequesterID int64
	Cutoff      time.Time
}

type ClaimConversationParams struct {
	ID         int64
	OpponentID int64
	At         time.Time
}

type CreateConversationParams struct {
	InitiatorID int64
	At          time.Time
}

type FinishConversationParams struct {
	ID int64
	At time.Time
}

// FinishWaitingConversationParams targets the initiator's waiting conversation.
// A non-zero NotAfter restricts it to conversations created at or before that time.
type FinishWaitingConversationParams struct {
	InitiatorID int64
	At          time.Time
	NotAfter    time.Time
}

type ListStaleWaitingParams struct {
	CreatedBefore time.Time
	Limit         int32
}

// ConversationCounts holds the number of open conversations per state.
type ConversationCounts struct {
	Waiting int64
	Active  int64
}

// Queries is the row-level operation set. Implementations are bound either to the
// backend connection pool or to a single transaction (see Store.WithTx).
type Queries interface {
	// CreateParticipantIfAbsent inserts a participant unless the external id is
	// already registered. created is false (and the record empty) when it was.
	CreateParticipantIfAbsent(ctx context.Context, arg CreateParticipantParams) (rec ParticipantRecord, created bool, err error)
	GetParticipantByExternalID(ctx context.Context, externalID string) (ParticipantRecord, error)
	GetParticipantByID(ctx context.Context, id int64) (ParticipantRecord, error)
	// SetParticipantStatus reports whether the row was in status From and is now To.
	SetParticipantStatus(ctx context.Context, arg SetParticipantStatusParams) (bool, error)

	FindClaimCandidate(ctx context.Context, arg FindClaimCandidateParams) (ConversationRecord, error)
	// ClaimConversation sets the opponent of a waiting conversation. It reports
	// false when the row is no longer waiting.
	ClaimConversation(ctx context.Context, arg ClaimConversationParams) (bool, error)
	CreateConversation(ctx context.Context, arg CreateConversationParams) (ConversationRecord, error)
	GetConversationByID(ctx context.Context, id int64) (ConversationRecord, error)
	// FinishConversation closes an open conversation; ErrNotFound when it is already closed.
	FinishConversation(ctx context.Context, arg FinishConversationParams) (ConversationRecord, error)
	// FinishWaitingConversation closes the initiator's open conversation only while it has no opponent.
	FinishWaitingConversation(ctx context.Context, arg FinishWaitingConversationParams) (ConversationRecord, error)
	GetWaitingConversationByInitiator(ctx context.Context, initiatorID int64) (ConversationRecord, error)
	GetActiveConversationByParticipant(ctx context.Context, participantID int64) (ConversationRecord, error)
	ListStaleWaitingConversations(ctx context.Context, arg ListStaleWaitingParams) ([]ConversationRecord, error)
	CountOpenConversations(ctx context.Context) (ConversationCounts, error)
}

// Store is a pairing store backend.
type Store interface {
	Queries
	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close() error
}
