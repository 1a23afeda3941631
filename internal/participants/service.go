// Package participants stores chat participants and their conversational status.
package participants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/anontalks/internal/storage"
)

// Service registers and looks up participants.
type Service struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a participant service.
func NewService(log *slog.Logger, store storage.Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "participants")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate registers the participant if the external id is new. An existing
// participant is returned untouched, whatever its status.
func (s *Service) GetOrCreate(ctx context.Context, externalID, address string) (Participant, bool, error) {
	externalID = strings.TrimSpace(externalID)
	address = strings.TrimSpace(address)
	if externalID == "" || address == "" {
		return Participant{}, false, errors.New("external id and address are required")
	}

	rec, created, err := s.store.CreateParticipantIfAbsent(ctx, storage.CreateParticipantParams{
		ExternalID: externalID,
		Address:    address,
		Status:     string(StatusInMenu),
		At:         s.now(),
	})
	if err != nil {
		return Participant{}, false, fmt.Errorf("create participant: %w", err)
	}
	if created {
		s.logger.Info("participant registered", slog.Int64("participant_id", rec.ID))
		return toParticipant(rec), true, nil
	}

	existing, err := s.Get(ctx, externalID)
	if err != nil {
		return Participant{}, false, err
	}
	return existing, false, nil
}

// Get returns the participant with the given external id.
func (s *Service) Get(ctx context.Context, externalID string) (Participant, error) {
	rec, err := s.store.GetParticipantByExternalID(ctx, strings.TrimSpace(externalID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return toParticipant(rec), nil
}

// GetByID returns the participant with the given internal id.
func (s *Service) GetByID(ctx context.Context, id int64) (Participant, error) {
	return GetByID(ctx, s.store, id)
}

// GetByID looks a participant up through q, which may be bound to a transaction.
func GetByID(ctx context.Context, q storage.Queries, id int64) (Participant, error) {
	rec, err := q.GetParticipantByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, fmt.Errorf("get participant %d: %w", id, err)
	}
	return toParticipant(rec), nil
}

// SetStatus moves participant id from status from to status to. q must be the
// transaction that also performs the conversation change justifying the move.
func SetStatus(ctx context.Context, q storage.Queries, id int64, from, to Status, at time.Time) error {
	ok, err := q.SetParticipantStatus(ctx, storage.SetParticipantStatusParams{
		ID:   id,
		From: string(from),
		To:   string(to),
		At:   at,
	})
	if err != nil {
		return fmt.Errorf("set participant %d status %s->%s: %w", id, from, to, err)
	}
	if !ok {
		return fmt.Errorf("participant %d %s->%s: %w", id, from, to, ErrStatusChanged)
	}
	return nil
}

func toParticipant(rec storage.ParticipantRecord) Participant {
	return Participant{
		ID:         rec.ID,
		ExternalID: rec.ExternalID,
		Address:    rec.Address,
		Status:     Status(rec.Status),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}
